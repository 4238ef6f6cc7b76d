package service

import (
	"context"
	"testing"
	"time"

	"handoff-service/internal/apperr"
	"handoff-service/internal/codes"
	"handoff-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStaffCodeService(t *testing.T, repo *fakeRepo, clock *time.Time) *StaffCodeService {
	t.Helper()
	staffCodes, err := codes.NewStaffCodes([]byte("test-secret"), 10*time.Minute)
	require.NoError(t, err)
	svc := NewStaffCodeService(staffCodes, NewAuthorizer(repo))
	svc.now = func() time.Time { return *clock }
	return svc
}

func TestStaffCodeCurrentRequiresAdmin(t *testing.T) {
	repo := newFakeRepo()
	repo.addMember(testStoreID, ownerID, models.RoleAdmin)
	repo.addMember(testStoreID, cashierID, models.RoleStaff)
	clock := baseTime
	svc := newStaffCodeService(t, repo, &clock)
	ctx := context.Background()

	_, err := svc.Current(ctx, cashier(), testStoreID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	current, err := svc.Current(ctx, owner(), testStoreID)
	require.NoError(t, err)
	assert.True(t, codes.IsNumeric(current.Code))
	assert.Equal(t, baseTime.Add(10*time.Minute), current.ExpiresAt)
}

func TestStaffCodeVerifyWindow(t *testing.T) {
	repo := newFakeRepo()
	repo.addMember(testStoreID, ownerID, models.RoleAdmin)
	clock := baseTime
	svc := newStaffCodeService(t, repo, &clock)
	ctx := context.Background()

	current, err := svc.Current(ctx, owner(), testStoreID)
	require.NoError(t, err)
	req := &VerifyStaffCodeRequest{StoreID: testStoreID, Code: current.Code}

	assert.NoError(t, svc.Verify(req))
	assert.NoError(t, svc.Verify(req), "deterministic codes are not single use")

	clock = baseTime.Add(10 * time.Minute)
	assert.NoError(t, svc.Verify(req), "previous window is still accepted")

	clock = baseTime.Add(20 * time.Minute)
	err = svc.Verify(req)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	assert.EqualError(t, svc.Verify(&VerifyStaffCodeRequest{StoreID: testStoreID}), "code is required")
	assert.EqualError(t, svc.Verify(&VerifyStaffCodeRequest{Code: current.Code}), "storeId is required")
}
