package archive

import (
	"context"
	"fmt"
	"io"
	"strings"

	"bookkeeping/internal/logger"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

const (
	// well-known Azurite development account
	azuriteAccountName = "devstoreaccount1"
	azuriteAccountKey  = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="
)

// BlobStore archives statements in an Azure Blob Storage container.
type BlobStore struct {
	client    *azblob.Client
	container string
}

// isLocal reports whether the service URL points at an emulator.
func isLocal(serviceURL string) bool {
	return strings.HasPrefix(serviceURL, "http://")
}

// NewBlobStore connects with the Azurite shared key for plain http URLs and
// with the default Azure credential chain otherwise.
func NewBlobStore(serviceURL, container string) (*BlobStore, error) {
	if serviceURL == "" {
		return nil, fmt.Errorf("blob service url is required")
	}
	var client *azblob.Client
	if isLocal(serviceURL) {
		logger.Info().Str("blob_url", serviceURL).Msg("using Azurite shared key credentials for statement archive")
		cred, err := azblob.NewSharedKeyCredential(azuriteAccountName, azuriteAccountKey)
		if err != nil {
			return nil, fmt.Errorf("create shared key credential: %w", err)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("create blob client with shared key: %w", err)
		}
	} else {
		var cred azcore.TokenCredential
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("create default azure credential: %w", err)
		}
		client, err = azblob.NewClient(serviceURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("create blob client: %w", err)
		}
	}
	return &BlobStore{client: client, container: container}, nil
}

func (s *BlobStore) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.client.CreateContainer(ctx, s.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		logger.FromContext(ctx).Warn().Err(err).Str("container", s.container).Msg("create archive container")
	}
	if _, err := s.client.UploadBuffer(ctx, s.container, key, data, nil); err != nil {
		return fmt.Errorf("upload blob %s/%s: %w", s.container, key, err)
	}
	logger.FromContext(ctx).Debug().Str("container", s.container).Str("key", key).Int("size_bytes", len(data)).Msg("statement archived")
	return nil
}

func (s *BlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, key, nil)
	if err != nil {
		return nil, fmt.Errorf("download blob %s/%s: %w", s.container, key, err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}
