package actors

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gracevcs/grace-server/pkg/actorhost"
	"github.com/gracevcs/grace-server/pkg/domain"
	"github.com/gracevcs/grace-server/pkg/errcode"
	"github.com/gracevcs/grace-server/pkg/types"
)

func (e *testEnv) handleDirectoryVersion(t *testing.T, dvID uuid.UUID, cmd domain.DirectoryVersionCommand, md types.EventMetadata) (*types.ReturnValue, error) {
	t.Helper()
	var rv *types.ReturnValue
	var handleErr error
	callErr := actorhost.Call(context.Background(), e.host, KindDirectoryVersion, dvID.String(), cmd.CommandType(),
		func(ctx context.Context, a *DirectoryVersionActor) error {
			rv, handleErr = a.Handle(ctx, cmd, md)
			return nil
		})
	require.NoError(t, callErr)
	return rv, handleErr
}

func TestDirectoryVersionIDIsDeterministic(t *testing.T) {
	repoID := uuid.New()
	assert.Equal(t, DirectoryVersionID(repoID, "abc123"), DirectoryVersionID(repoID, "abc123"))
	assert.NotEqual(t, DirectoryVersionID(repoID, "abc123"), DirectoryVersionID(repoID, "def456"))
	assert.NotEqual(t, DirectoryVersionID(repoID, "abc123"), DirectoryVersionID(uuid.New(), "abc123"))
}

func TestDirectoryVersionCreate(t *testing.T) {
	env := newTestEnv(t, types.DefaultRetentionPolicy())
	repoID := uuid.New()
	dvID := DirectoryVersionID(repoID, "abc123")

	cmd := &domain.DirectoryVersionCreate{
		DirectoryVersionID: dvID,
		RepositoryID:       repoID,
		RelativePath:       "src",
		Sha256Hash:         "abc123",
		Files: []types.FileEntry{
			{RelativePath: "src/main.go", Sha256Hash: "f1", Size: 120},
			{RelativePath: "src/util.go", Sha256Hash: "f2", Size: 80},
		},
		Size: 200,
	}
	rv, err := env.handleDirectoryVersion(t, dvID, cmd, corr())
	require.NoError(t, err)
	assert.Equal(t, "Created", rv.EventType)
	assert.Equal(t, dvID.String(), rv.Properties[types.PropDirectoryVersionID])

	_, err = env.handleDirectoryVersion(t, dvID, cmd, corr())
	assert.Equal(t, errcode.EntityAlreadyExists, errcode.CodeOf(err))
}

func TestDirectoryVersionSizeMismatch(t *testing.T) {
	env := newTestEnv(t, types.DefaultRetentionPolicy())
	repoID := uuid.New()
	dvID := DirectoryVersionID(repoID, "abc123")

	_, err := env.handleDirectoryVersion(t, dvID, &domain.DirectoryVersionCreate{
		DirectoryVersionID: dvID,
		RepositoryID:       repoID,
		Sha256Hash:         "abc123",
		Files:              []types.FileEntry{{RelativePath: "a", Sha256Hash: "f1", Size: 10}},
		Size:               11,
	}, corr())
	assert.Equal(t, errcode.SizeMismatch, errcode.CodeOf(err))
}

func TestDirectoryVersionDelete(t *testing.T) {
	env := newTestEnv(t, types.DefaultRetentionPolicy())
	repoID := uuid.New()
	dvID := DirectoryVersionID(repoID, "abc123")

	_, err := env.handleDirectoryVersion(t, dvID, &domain.DirectoryVersionCreate{
		DirectoryVersionID: dvID,
		RepositoryID:       repoID,
		Sha256Hash:         "abc123",
	}, corr())
	require.NoError(t, err)

	_, err = env.handleDirectoryVersion(t, dvID, &domain.DirectoryVersionDeleteLogical{}, corr())
	require.NoError(t, err)
	_, err = env.handleDirectoryVersion(t, dvID, &domain.DirectoryVersionDeleteLogical{}, corr())
	assert.Equal(t, errcode.EntityDeleted, errcode.CodeOf(err))

	_, err = env.handleDirectoryVersion(t, dvID, &domain.DirectoryVersionDeletePhysical{}, corr())
	require.NoError(t, err)

	var exists bool
	require.NoError(t, actorhost.Call(context.Background(), env.host, KindDirectoryVersion, dvID.String(), "Get",
		func(ctx context.Context, a *DirectoryVersionActor) error {
			exists = a.Exists()
			return nil
		}))
	assert.False(t, exists)

	_, err = env.handleDirectoryVersion(t, dvID, &domain.DirectoryVersionDeleteLogical{}, corr())
	assert.Equal(t, errcode.DirectoryVersionNotFound, errcode.CodeOf(err))
}
