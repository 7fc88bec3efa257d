package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAlertRepo struct {
	stored []*Alert
	err    error
}

func (r *fakeAlertRepo) Create(_ context.Context, a *Alert) error {
	if r.err != nil {
		return r.err
	}
	a.ID = int64(len(r.stored) + 1)
	r.stored = append(r.stored, a)
	return nil
}

func (r *fakeAlertRepo) ListByUser(context.Context, string, int) ([]*Alert, error) {
	return r.stored, nil
}

func TestCreateAlert(t *testing.T) {
	repo := &fakeAlertRepo{}
	svc := NewAlertService(repo)

	a := svc.CreateAlert(context.Background(), "u1", "Excel validation failed for Prices. 2 errors detected.")
	require.NotNil(t, a)
	assert.Equal(t, int64(1), a.ID)

	long := svc.CreateAlert(context.Background(), "u1", strings.Repeat("x", 300))
	require.NotNil(t, long)
	assert.Len(t, long.Message, MaxAlertLength)
}

func TestCreateAlert_BestEffort(t *testing.T) {
	svc := NewAlertService(&fakeAlertRepo{err: errors.New("connection refused")})
	assert.Nil(t, svc.CreateAlert(context.Background(), "u1", "msg"))
	assert.Nil(t, svc.CreateAlert(context.Background(), "", "msg"))
}
