package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/plan-pool/internal/models"
)

func TestStorage_CreatePool(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	ownerUID := uuid.New().String()
	periodStart := time.Now().UTC()
	periodEnd := periodStart.AddDate(0, 1, 0)

	pool := models.TokenPool{
		ID:             uuid.New().String(),
		OwnerUserUID:   ownerUID,
		PlanType:       models.PlanStandard,
		BaseLimit:      50000,
		CurrentBalance: 50000,
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		Status:         models.PoolActive,
	}
	primary := models.Membership{
		ID:            uuid.New().String(),
		UserUID:       ownerUID,
		Username:      "testuser",
		AgeVerified:   true,
		TermsAccepted: true,
	}

	err := storage.CreatePool(context.Background(), pool, primary)
	require.NoError(t, err)

	gotPool, gotMember, err := storage.GetPoolByMember(context.Background(), ownerUID)
	require.NoError(t, err)
	assert.Equal(t, pool.ID, gotPool.ID)
	assert.Equal(t, 50000, gotPool.CurrentBalance)
	assert.Equal(t, models.RolePrimary, gotMember.Role)
	assert.Equal(t, models.MemberActive, gotMember.Status)

	// Второй активный пул у того же владельца создать нельзя.
	pool.ID = uuid.New().String()
	primary.ID = uuid.New().String()
	err = storage.CreatePool(context.Background(), pool, primary)
	require.Error(t, err)
}

func TestStorage_DeductTokens(t *testing.T) {
	type args struct {
		amount    int
		usageType string
	}

	tests := []struct {
		name        string
		args        args
		balance     int
		wantBalance int
		wantErr     error
	}{
		{
			name:        "successful deduct",
			args:        args{amount: 500, usageType: "chat"},
			balance:     40000,
			wantBalance: 39500,
		},
		{
			name:    "insufficient balance leaves pool untouched",
			args:    args{amount: 500, usageType: "chat"},
			balance: 100,
			wantErr: ErrInsufficientBalance,
		},
		{
			name:        "deduct to exactly zero",
			args:        args{amount: 100, usageType: "chat"},
			balance:     100,
			wantBalance: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, cleanup := setupTestDatabase(t)
			defer cleanup()

			factory := NewTestDataFactory(storage)
			ownerUID := uuid.New().String()
			poolID := factory.CreatePool(t, ownerUID, models.PlanStandard, 50000, tt.balance, false,
				time.Now().UTC(), time.Now().UTC().AddDate(0, 1, 0))
			factory.CreateMembership(t, poolID, ownerUID, "testuser", models.RolePrimary, models.MemberActive)

			gotBalance, err := storage.DeductTokens(context.Background(), poolID, ownerUID, tt.args.amount, tt.args.usageType)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				verification := NewTestVerification(storage)
				verification.VerifyPoolBalance(t, poolID, tt.balance)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBalance, gotBalance)

			// Списание отражено и в истории, и в счётчике участника.
			events, err := storage.ListUsageEvents(context.Background(), poolID, "", 10, 0)
			require.NoError(t, err)
			require.Len(t, events, 1)
			assert.Equal(t, tt.args.amount, events[0].Tokens)
			assert.Equal(t, tt.args.usageType, events[0].UsageType)

			member, err := storage.GetMembership(context.Background(), poolID, ownerUID)
			require.NoError(t, err)
			assert.Equal(t, tt.args.amount, member.TokensUsedThisPeriod)
		})
	}
}

func TestStorage_DeductTokens_Concurrent(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	ownerUID := uuid.New().String()
	poolID := factory.CreatePool(t, ownerUID, models.PlanStandard, 50000, 500, false,
		time.Now().UTC(), time.Now().UTC().AddDate(0, 1, 0))
	factory.CreateMembership(t, poolID, ownerUID, "testuser", models.RolePrimary, models.MemberActive)

	// 10 конкурентных списаний по 100 при балансе 500:
	// пройти могут ровно 5, баланс не уходит в минус.
	const workers = 10
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = storage.DeductTokens(context.Background(), poolID, ownerUID, 100, "chat")
		}()
	}
	wg.Wait()

	var succeeded, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		default:
			require.ErrorIs(t, err, ErrInsufficientBalance)
			rejected++
		}
	}
	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 5, rejected)

	verification := NewTestVerification(storage)
	verification.VerifyPoolBalance(t, poolID, 0)
}

func TestStorage_CreditPurchase(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	ownerUID := uuid.New().String()
	poolID := factory.CreatePool(t, ownerUID, models.PlanStandard, 50000, 40000, false,
		time.Now().UTC(), time.Now().UTC().AddDate(0, 1, 0))

	newBalance, err := storage.CreditPurchase(context.Background(), poolID, "pay-1", 10000)
	require.NoError(t, err)
	assert.Equal(t, 50000, newBalance)

	// Повторное уведомление того же платежа баланс не меняет.
	_, err = storage.CreditPurchase(context.Background(), poolID, "pay-1", 10000)
	require.ErrorIs(t, err, ErrDuplicatePurchase)

	verification := NewTestVerification(storage)
	verification.VerifyPoolBalance(t, poolID, 50000)
}

func TestStorage_ResetPeriod(t *testing.T) {
	t.Run("due pool is reset once", func(t *testing.T) {
		storage, cleanup := setupTestDatabase(t)
		defer cleanup()

		factory := NewTestDataFactory(storage)
		ownerUID := uuid.New().String()
		periodStart := time.Now().UTC().AddDate(0, -1, 0)
		periodEnd := time.Now().UTC().Add(-time.Hour)
		poolID := factory.CreatePool(t, ownerUID, models.PlanStandard, 50000, 12000, false, periodStart, periodEnd)
		factory.CreateMembership(t, poolID, ownerUID, "testuser", models.RolePrimary, models.MemberActive)
		_, err := storage.DB.Exec(
			`UPDATE memberships SET tokens_used_this_period = 38000 WHERE pool_id = $1`, poolID)
		require.NoError(t, err)

		now := time.Now().UTC()
		done, err := storage.ResetPeriod(context.Background(), poolID, now)
		require.NoError(t, err)
		assert.True(t, done)

		verification := NewTestVerification(storage)
		verification.VerifyPoolBalance(t, poolID, 50000)

		member, err := storage.GetMembership(context.Background(), poolID, ownerUID)
		require.NoError(t, err)
		assert.Zero(t, member.TokensUsedThisPeriod)

		pool, err := storage.GetPool(context.Background(), poolID)
		require.NoError(t, err)
		assert.True(t, pool.PeriodEnd.After(now))

		// Повторный вызов в новом периоде ничего не делает.
		done, err = storage.ResetPeriod(context.Background(), poolID, now)
		require.NoError(t, err)
		assert.False(t, done)
		verification.VerifyPoolBalance(t, poolID, 50000)
	})

	t.Run("carryover plan keeps purchased tokens", func(t *testing.T) {
		storage, cleanup := setupTestDatabase(t)
		defer cleanup()

		factory := NewTestDataFactory(storage)
		ownerUID := uuid.New().String()
		poolID := factory.CreatePool(t, ownerUID, models.PlanBusiness, 500000, 100, true,
			time.Now().UTC().AddDate(0, -1, 0), time.Now().UTC().Add(-time.Hour))
		_, err := storage.DB.Exec(
			`UPDATE token_pools SET purchased_tokens = 10000 WHERE id = $1`, poolID)
		require.NoError(t, err)

		done, err := storage.ResetPeriod(context.Background(), poolID, time.Now().UTC())
		require.NoError(t, err)
		assert.True(t, done)

		verification := NewTestVerification(storage)
		verification.VerifyPoolBalance(t, poolID, 510000)
	})
}

func TestStorage_CreateInvitation(t *testing.T) {
	t.Run("successful create", func(t *testing.T) {
		storage, cleanup := setupTestDatabase(t)
		defer cleanup()

		factory := NewTestDataFactory(storage)
		ownerUID := uuid.New().String()
		poolID := factory.CreatePool(t, ownerUID, models.PlanMinistry, 150000, 150000, false,
			time.Now().UTC(), time.Now().UTC().AddDate(0, 1, 0))
		factory.CreateMembership(t, poolID, ownerUID, "testuser", models.RolePrimary, models.MemberActive)

		inv := models.Invitation{
			ID:                 uuid.New().String(),
			PoolID:             poolID,
			InvitedEmail:       "guest@example.com",
			InvitationToken:    "tok-1",
			ExpiresAt:          time.Now().UTC().Add(72 * time.Hour),
			AgeAttestationBy:   ownerUID,
			AgeAttestationText: "I attest the invitee is at least 13 years old",
			AgeAttestationAt:   time.Now().UTC(),
		}
		err := storage.CreateInvitation(context.Background(), inv, time.Now().UTC())
		require.NoError(t, err)

		count, err := storage.CountPendingInvitations(context.Background(), poolID, time.Now().UTC())
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("pending invitations count against capacity", func(t *testing.T) {
		storage, cleanup := setupTestDatabase(t)
		defer cleanup()

		factory := NewTestDataFactory(storage)
		ownerUID := uuid.New().String()
		// У visitor max_users = 1: владелец занимает единственное место.
		poolID := factory.CreatePool(t, ownerUID, models.PlanVisitor, 5000, 5000, false,
			time.Now().UTC(), time.Now().UTC().AddDate(0, 1, 0))
		factory.CreateMembership(t, poolID, ownerUID, "testuser", models.RolePrimary, models.MemberActive)

		inv := models.Invitation{
			ID:                 uuid.New().String(),
			PoolID:             poolID,
			InvitedEmail:       "guest@example.com",
			InvitationToken:    "tok-1",
			ExpiresAt:          time.Now().UTC().Add(72 * time.Hour),
			AgeAttestationBy:   ownerUID,
			AgeAttestationText: "I attest the invitee is at least 13 years old",
			AgeAttestationAt:   time.Now().UTC(),
		}
		err := storage.CreateInvitation(context.Background(), inv, time.Now().UTC())
		require.ErrorIs(t, err, ErrCapacityReached)
	})
}

func TestStorage_AcceptInvitation(t *testing.T) {
	t.Run("successful accept activates membership", func(t *testing.T) {
		storage, cleanup := setupTestDatabase(t)
		defer cleanup()

		factory := NewTestDataFactory(storage)
		ownerUID := uuid.New().String()
		poolID := factory.CreatePool(t, ownerUID, models.PlanMinistry, 150000, 150000, false,
			time.Now().UTC(), time.Now().UTC().AddDate(0, 1, 0))
		factory.CreateMembership(t, poolID, ownerUID, "testuser", models.RolePrimary, models.MemberActive)
		invitationID := factory.CreateInvitation(t, poolID, "guest@example.com", "tok-1",
			models.InviteStatusPending, time.Now().UTC().Add(72*time.Hour))

		guestUID := uuid.New().String()
		member, err := storage.AcceptInvitation(context.Background(), "tok-1",
			ActiveMembership(guestUID, "guest"), time.Now().UTC())
		require.NoError(t, err)
		assert.Equal(t, models.RoleAssociated, member.Role)
		assert.Equal(t, models.MemberActive, member.Status)
		assert.Equal(t, poolID, member.PoolID)

		verification := NewTestVerification(storage)
		verification.VerifyInvitationStatus(t, invitationID, models.InviteStatusAccepted)
		verification.VerifyMembershipStatus(t, poolID, guestUID, models.MemberActive)
	})

	t.Run("expired invitation is rejected", func(t *testing.T) {
		storage, cleanup := setupTestDatabase(t)
		defer cleanup()

		factory := NewTestDataFactory(storage)
		ownerUID := uuid.New().String()
		poolID := factory.CreatePool(t, ownerUID, models.PlanMinistry, 150000, 150000, false,
			time.Now().UTC(), time.Now().UTC().AddDate(0, 1, 0))
		factory.CreateMembership(t, poolID, ownerUID, "testuser", models.RolePrimary, models.MemberActive)
		factory.CreateInvitation(t, poolID, "guest@example.com", "tok-1",
			models.InviteStatusPending, time.Now().UTC().Add(-time.Hour))

		_, err := storage.AcceptInvitation(context.Background(), "tok-1",
			ActiveMembership(uuid.New().String(), "guest"), time.Now().UTC())
		require.ErrorIs(t, err, ErrInviteExpired)
	})

	t.Run("invitation cannot be accepted twice", func(t *testing.T) {
		storage, cleanup := setupTestDatabase(t)
		defer cleanup()

		factory := NewTestDataFactory(storage)
		ownerUID := uuid.New().String()
		poolID := factory.CreatePool(t, ownerUID, models.PlanMinistry, 150000, 150000, false,
			time.Now().UTC(), time.Now().UTC().AddDate(0, 1, 0))
		factory.CreateMembership(t, poolID, ownerUID, "testuser", models.RolePrimary, models.MemberActive)
		factory.CreateInvitation(t, poolID, "guest@example.com", "tok-1",
			models.InviteStatusPending, time.Now().UTC().Add(72*time.Hour))

		_, err := storage.AcceptInvitation(context.Background(), "tok-1",
			ActiveMembership(uuid.New().String(), "guest"), time.Now().UTC())
		require.NoError(t, err)

		_, err = storage.AcceptInvitation(context.Background(), "tok-1",
			ActiveMembership(uuid.New().String(), "other"), time.Now().UTC())
		require.ErrorIs(t, err, ErrInviteNotPending)
	})

	t.Run("concurrent accepts of one token activate exactly one member", func(t *testing.T) {
		storage, cleanup := setupTestDatabase(t)
		defer cleanup()

		factory := NewTestDataFactory(storage)
		ownerUID := uuid.New().String()
		poolID := factory.CreatePool(t, ownerUID, models.PlanMinistry, 150000, 150000, false,
			time.Now().UTC(), time.Now().UTC().AddDate(0, 1, 0))
		factory.CreateMembership(t, poolID, ownerUID, "testuser", models.RolePrimary, models.MemberActive)
		factory.CreateInvitation(t, poolID, "guest@example.com", "tok-1",
			models.InviteStatusPending, time.Now().UTC().Add(72*time.Hour))

		const workers = 5
		var wg sync.WaitGroup
		errs := make([]error, workers)
		for i := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = storage.AcceptInvitation(context.Background(), "tok-1",
					ActiveMembership(uuid.New().String(), "guest"), time.Now().UTC())
			}()
		}
		wg.Wait()

		var succeeded int
		for _, err := range errs {
			if err == nil {
				succeeded++
			} else {
				require.ErrorIs(t, err, ErrInviteNotPending)
			}
		}
		assert.Equal(t, 1, succeeded)

		verification := NewTestVerification(storage)
		verification.VerifyActiveMemberCount(t, poolID, 2) // владелец + один гость
	})
}

func TestStorage_RevokeInvitation(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	ownerUID := uuid.New().String()
	poolID := factory.CreatePool(t, ownerUID, models.PlanMinistry, 150000, 150000, false,
		time.Now().UTC(), time.Now().UTC().AddDate(0, 1, 0))
	invitationID := factory.CreateInvitation(t, poolID, "guest@example.com", "tok-1",
		models.InviteStatusPending, time.Now().UTC().Add(72*time.Hour))

	err := storage.RevokeInvitation(context.Background(), invitationID)
	require.NoError(t, err)

	verification := NewTestVerification(storage)
	verification.VerifyInvitationStatus(t, invitationID, models.InviteStatusRevoked)

	// Отозванное приглашение повторно отозвать нельзя.
	err = storage.RevokeInvitation(context.Background(), invitationID)
	require.ErrorIs(t, err, ErrInviteNotPending)

	err = storage.RevokeInvitation(context.Background(), uuid.New().String())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStorage_RemoveMember(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	ownerUID := uuid.New().String()
	guestUID := uuid.New().String()
	poolID := factory.CreatePool(t, ownerUID, models.PlanMinistry, 150000, 150000, false,
		time.Now().UTC(), time.Now().UTC().AddDate(0, 1, 0))
	factory.CreateMembership(t, poolID, ownerUID, "testuser", models.RolePrimary, models.MemberActive)
	factory.CreateMembership(t, poolID, guestUID, "guest", models.RoleAssociated, models.MemberActive)

	err := storage.RemoveMember(context.Background(), poolID, guestUID)
	require.NoError(t, err)

	verification := NewTestVerification(storage)
	verification.VerifyMembershipStatus(t, poolID, guestUID, models.MemberRemoved)

	// Участие primary этим запросом тронуть нельзя.
	err = storage.RemoveMember(context.Background(), poolID, ownerUID)
	require.ErrorIs(t, err, ErrNotFound)
	verification.VerifyMembershipStatus(t, poolID, ownerUID, models.MemberActive)
}

func TestStorage_MarkExpiredInvitations(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	ownerUID := uuid.New().String()
	poolID := factory.CreatePool(t, ownerUID, models.PlanMinistry, 150000, 150000, false,
		time.Now().UTC(), time.Now().UTC().AddDate(0, 1, 0))
	expiredID := factory.CreateInvitation(t, poolID, "a@example.com", "tok-1",
		models.InviteStatusPending, time.Now().UTC().Add(-time.Hour))
	pendingID := factory.CreateInvitation(t, poolID, "b@example.com", "tok-2",
		models.InviteStatusPending, time.Now().UTC().Add(72*time.Hour))

	count, err := storage.MarkExpiredInvitations(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	verification := NewTestVerification(storage)
	verification.VerifyInvitationStatus(t, expiredID, models.InviteStatusExpired)
	verification.VerifyInvitationStatus(t, pendingID, models.InviteStatusPending)
}

func TestStorage_ListPendingByEmail(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	ownerUID := uuid.New().String()
	poolID := factory.CreatePool(t, ownerUID, models.PlanMinistry, 150000, 150000, false,
		time.Now().UTC(), time.Now().UTC().AddDate(0, 1, 0))
	factory.CreateMembership(t, poolID, ownerUID, "testuser", models.RolePrimary, models.MemberActive)
	factory.CreateInvitation(t, poolID, "guest@example.com", "tok-1",
		models.InviteStatusPending, time.Now().UTC().Add(72*time.Hour))
	// Истёкшее приглашение в выдачу не попадает, даже пока оно pending.
	factory.CreateInvitation(t, poolID, "guest@example.com", "tok-2",
		models.InviteStatusPending, time.Now().UTC().Add(-time.Hour))

	got, err := storage.ListPendingByEmail(context.Background(), "guest@example.com", time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "testuser", got[0].InviterName)
	assert.Equal(t, models.PlanMinistry, got[0].PlanType)
}

func TestStorage_CancelPool(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	ownerUID := uuid.New().String()
	guestUID := uuid.New().String()
	poolID := factory.CreatePool(t, ownerUID, models.PlanMinistry, 150000, 150000, false,
		time.Now().UTC(), time.Now().UTC().AddDate(0, 1, 0))
	factory.CreateMembership(t, poolID, ownerUID, "testuser", models.RolePrimary, models.MemberActive)
	factory.CreateMembership(t, poolID, guestUID, "guest", models.RoleAssociated, models.MemberActive)
	invitationID := factory.CreateInvitation(t, poolID, "pending@example.com", "tok-1",
		models.InviteStatusPending, time.Now().UTC().Add(72*time.Hour))

	err := storage.CancelPool(context.Background(), poolID)
	require.NoError(t, err)

	pool, err := storage.GetPool(context.Background(), poolID)
	require.NoError(t, err)
	assert.Equal(t, models.PoolExpired, pool.Status)

	verification := NewTestVerification(storage)
	verification.VerifyMembershipStatus(t, poolID, ownerUID, models.MemberRemoved)
	verification.VerifyMembershipStatus(t, poolID, guestUID, models.MemberRemoved)
	verification.VerifyInvitationStatus(t, invitationID, models.InviteStatusRevoked)

	// Повторная отмена — пул уже expired.
	err = storage.CancelPool(context.Background(), poolID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStorage_GetPlanLimits(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	limits, err := storage.GetPlanLimits(context.Background(), models.PlanBusiness)
	require.NoError(t, err)
	assert.Equal(t, 10, limits.MaxUsers)
	assert.Equal(t, 500000, limits.MonthlyTokenLimit)
	assert.True(t, limits.AllowsPurchase)
	assert.True(t, limits.PurchaseCarryover)
	assert.Contains(t, limits.DefaultCommunityIDs, "business")

	_, err = storage.GetPlanLimits(context.Background(), "unknown")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStorage_InsertAuditEntry(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	entry := models.AuditLogEntry{
		AccessorUserUID: uuid.New().String(),
		ActionType:      models.AuditListMembers,
		TargetType:      "pool",
		TargetID:        uuid.New().String(),
		AccessorIP:      "192.0.2.1",
		AccessorUA:      "test-agent",
		ResultSummary:   "2 members",
	}
	id, err := storage.InsertAuditEntry(context.Background(), entry)
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	got, err := storage.ListAuditEntries(context.Background(), "pool", entry.TargetID, 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, entry.ActionType, got[0].ActionType)
	assert.Equal(t, entry.AccessorIP, got[0].AccessorIP)
}

func TestCheckDatabaseReady(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	require.NoError(t, CheckDatabaseReady(storage))

	_, err := storage.DB.Exec(`DROP TABLE audit_log, token_purchases, usage_events,
		invitations, memberships, token_pools, plan_type_limits CASCADE`)
	require.NoError(t, err)

	err = CheckDatabaseReady(storage)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}
