// Package extractor implements the paginated fetch-and-persist loop.
//
// An Extractor runs a Job against a Source: it fetches one page at a time
// through a Transport, writes every non-empty page to its own JSON artifact
// in the job's destination directory, asks the Source whether the page was
// the last one, and otherwise derives the pagination parameters for the next
// request from the page body.
//
// Artifacts are named
//
//	{destination}/{source_name}_{source_surname}_{utc_timestamp}_{page:03d}.json
//
// where source_surname is the job's relative path with "/" replaced by "_".
//
// Failure handling is explicit. Under PolicyBestEffort (the default) a failed
// fetch ends the run with OutcomeTruncated and the cause in Result.Err, and a
// failed artifact write is counted and skipped. Under PolicyFailFast both are
// returned as errors wrapping ErrFetch or ErrPersist.
package extractor
