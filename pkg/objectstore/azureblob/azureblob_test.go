package azureblob

import (
	"errors"
	"net/http"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/coin-ingest/pkg/objectstore"
)

var _ objectstore.Store = (*Store)(nil)

// azuriteConnectionString uses the well-known Azurite development account.
const azuriteConnectionString = "DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;" +
	"AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;" +
	"BlobEndpoint=http://127.0.0.1:10000/devstoreaccount1;"

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Container: "airflow-datawarehouse"}, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AZURE_STORAGE_CONNECTION_STRING")

	_, err = New(Config{ConnectionString: azuriteConnectionString}, zerolog.Nop())
	assert.Error(t, err)

	_, err = New(Config{Container: "c", ConnectionString: "not-a-connection-string"}, zerolog.Nop())
	assert.Error(t, err)

	store, err := New(Config{Container: "airflow-datawarehouse", ConnectionString: azuriteConnectionString}, zerolog.Nop())
	require.NoError(t, err)
	assert.NotNil(t, store)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"blob not found", &azcore.ResponseError{ErrorCode: "BlobNotFound", StatusCode: 404}, objectstore.ErrNotFound},
		{"container not found", &azcore.ResponseError{ErrorCode: "ContainerNotFound", StatusCode: 404}, objectstore.ErrNotFound},
		{"authentication failed", &azcore.ResponseError{ErrorCode: "AuthenticationFailed", StatusCode: 403}, objectstore.ErrAuth},
		{"authorization failure", &azcore.ResponseError{ErrorCode: "AuthorizationFailure", StatusCode: 403}, objectstore.ErrAuth},
		{"bare 401", &azcore.ResponseError{StatusCode: http.StatusUnauthorized}, objectstore.ErrAuth},
		{"bare 404", &azcore.ResponseError{StatusCode: http.StatusNotFound}, objectstore.ErrNotFound},
		{"server busy", &azcore.ResponseError{ErrorCode: "ServerBusy", StatusCode: 503}, objectstore.ErrOperationFailed},
		{"plain error", errors.New("connection refused"), objectstore.ErrOperationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestWrap_WithClassify(t *testing.T) {
	cause := &azcore.ResponseError{ErrorCode: "BlobNotFound", StatusCode: 404}
	err := objectstore.Wrap(provider, "download", "Bronze/x.json", cause, Classify)

	assert.ErrorIs(t, err, objectstore.ErrNotFound)
	var respErr *azcore.ResponseError
	assert.ErrorAs(t, err, &respErr)
}
