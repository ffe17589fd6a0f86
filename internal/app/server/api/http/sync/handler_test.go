package sync

import (
	"context"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"syncpoint/internal/domain/sync"
)

type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) Synchronize(ctx context.Context, req sync.SyncRequest) (*sync.SyncResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sync.SyncResponse), args.Error(1)
}

func (m *MockEngine) Status(ctx context.Context, sessionID string) (*sync.StatusResponse, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sync.StatusResponse), args.Error(1)
}

func (m *MockEngine) PendingConflicts(ctx context.Context, clientID string) ([]*sync.Conflict, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*sync.Conflict), args.Error(1)
}

func (m *MockEngine) ResolvePending(ctx context.Context, conflictID string, policy sync.Policy) (*sync.Conflict, error) {
	args := m.Called(ctx, conflictID, policy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sync.Conflict), args.Error(1)
}

func (m *MockEngine) ClientStats(ctx context.Context, clientID string) (*sync.Stats, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sync.Stats), args.Error(1)
}

func newTestHandler(engine Engine) *Handler {
	return NewHandler(engine, slog.Default(), huma.Middlewares{})
}

func TestHandler_synchronize(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Synchronize", mock.Anything, mock.AnythingOfType("sync.SyncRequest")).
		Return(&sync.SyncResponse{
			Success:             true,
			ResumeToken:         "token-1",
			TotalOperations:     3,
			CompletedOperations: 3,
		}, nil)

	handler := newTestHandler(engine)
	out, err := handler.synchronize(context.Background(), &synchronizeInput{
		Body: sync.SyncRequest{ClientID: "client-1"},
	})

	require.NoError(t, err)
	assert.True(t, out.Body.Success)
	assert.Equal(t, "token-1", out.Body.ResumeToken)
	engine.AssertExpectations(t)
}

func TestHandler_synchronize_InProgress(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Synchronize", mock.Anything, mock.Anything).
		Return(nil, sync.ErrSyncInProgress)

	handler := newTestHandler(engine)
	_, err := handler.synchronize(context.Background(), &synchronizeInput{
		Body: sync.SyncRequest{ClientID: "client-1", ResumeToken: "tok"},
	})

	require.Error(t, err)
	var statusErr huma.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 409, statusErr.GetStatus())
}

func TestHandler_sessionStatus_NotFound(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Status", mock.Anything, "missing").
		Return(nil, sync.ErrSessionNotFound)

	handler := newTestHandler(engine)
	_, err := handler.sessionStatus(context.Background(), &sessionStatusInput{ID: "missing"})

	require.Error(t, err)
	var statusErr huma.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 404, statusErr.GetStatus())
}

func TestHandler_listConflicts_EmptyIsNotNull(t *testing.T) {
	engine := new(MockEngine)
	engine.On("PendingConflicts", mock.Anything, "client-1").
		Return([]*sync.Conflict(nil), nil)

	handler := newTestHandler(engine)
	out, err := handler.listConflicts(context.Background(), &listConflictsInput{ClientID: "client-1"})

	require.NoError(t, err)
	assert.NotNil(t, out.Body.Conflicts)
	assert.Empty(t, out.Body.Conflicts)
}

func TestHandler_resolveConflict_AlreadyResolved(t *testing.T) {
	engine := new(MockEngine)
	engine.On("ResolvePending", mock.Anything, "c-1", sync.PolicyKeepLocal).
		Return(nil, sync.ErrConflictResolved)

	handler := newTestHandler(engine)
	_, err := handler.resolveConflict(context.Background(), &resolveConflictInput{
		ID:   "c-1",
		Body: sync.ResolveConflictRequest{Resolution: sync.PolicyKeepLocal},
	})

	require.Error(t, err)
	var statusErr huma.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 409, statusErr.GetStatus())
}

func TestHandler_resolveConflict_Success(t *testing.T) {
	engine := new(MockEngine)
	resolved := &sync.Conflict{ID: "c-1", Status: sync.ConflictResolved, Resolution: "keep_remote"}
	engine.On("ResolvePending", mock.Anything, "c-1", sync.PolicyKeepRemote).
		Return(resolved, nil)

	handler := newTestHandler(engine)
	out, err := handler.resolveConflict(context.Background(), &resolveConflictInput{
		ID:   "c-1",
		Body: sync.ResolveConflictRequest{Resolution: sync.PolicyKeepRemote},
	})

	require.NoError(t, err)
	assert.Equal(t, sync.ConflictResolved, out.Body.Conflict.Status)
}
