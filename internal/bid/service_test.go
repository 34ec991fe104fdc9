package bid_test

import (
	"context"
	"strings"
	"testing"

	"ms-bidding/internal/bid"
	"ms-bidding/internal/logger"
	"ms-bidding/internal/models"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// Mock implementations

type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) GetGigByID(ctx context.Context, gigID string) (*models.Gig, error) {
	args := m.Called(gigID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Gig), args.Error(1)
}

func (m *MockDBLayer) GetBidByID(ctx context.Context, bidID string) (*models.Bid, error) {
	args := m.Called(bidID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bid), args.Error(1)
}

func (m *MockDBLayer) GetActiveBidByArtist(ctx context.Context, gigID, artistID string) (*models.Bid, error) {
	args := m.Called(gigID, artistID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bid), args.Error(1)
}

func (m *MockDBLayer) GetPendingBidsForGig(ctx context.Context, gigID string) ([]models.Bid, error) {
	args := m.Called(gigID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Bid), args.Error(1)
}

func (m *MockDBLayer) CreateBid(ctx context.Context, b models.Bid) error {
	args := m.Called(b)
	return args.Error(0)
}

func (m *MockDBLayer) UpdateBidAmount(ctx context.Context, bidID string, amount int64) error {
	args := m.Called(bidID, amount)
	return args.Error(0)
}

func (m *MockDBLayer) UpdateBidStatus(ctx context.Context, bidID string, status models.BidStatus) error {
	args := m.Called(bidID, status)
	return args.Error(0)
}

type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) Acquire(ctx context.Context, gigID string) (string, error) {
	args := m.Called(gigID)
	return args.String(0), args.Error(1)
}

func (m *MockLocker) Release(ctx context.Context, gigID, token string) error {
	args := m.Called(gigID, token)
	return args.Error(0)
}

// eventRecorder captures published events in order.
type eventRecorder struct {
	events []models.Event
}

func (r *eventRecorder) Publish(e models.Event) {
	r.events = append(r.events, e)
}

func (r *eventRecorder) byType(eventType string) []models.Event {
	var out []models.Event
	for _, e := range r.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func newTestService() (*bid.BidService, *MockDBLayer, *MockLocker, *eventRecorder) {
	mockDB := new(MockDBLayer)
	mockLock := new(MockLocker)
	recorder := &eventRecorder{}
	svc := bid.NewBidService(mockDB, mockLock, recorder, logger.NewSilent())
	return svc, mockDB, mockLock, recorder
}

func liveGig(budget int64) *models.Gig {
	return &models.Gig{
		GigID:     uuid.NewString(),
		ClientID:  uuid.NewString(),
		BudgetMax: budget,
		Status:    models.GigLive,
	}
}

func allowLock(mockLock *MockLocker, gigID string) {
	mockLock.On("Acquire", gigID).Return("lock-token", nil)
	mockLock.On("Release", gigID, "lock-token").Return(nil)
}

func validProposal() string {
	return strings.Repeat(gofakeit.LetterN(4)+" ", 8)
}

// Tests

func TestPlaceBid_FirstBidWithinBudget(t *testing.T) {
	svc, mockDB, mockLock, recorder := newTestService()
	gig := liveGig(10000)
	artistID := uuid.NewString()

	allowLock(mockLock, gig.GigID)
	mockDB.On("GetGigByID", gig.GigID).Return(gig, nil)
	mockDB.On("GetActiveBidByArtist", gig.GigID, artistID).Return(nil, nil)
	mockDB.On("GetPendingBidsForGig", gig.GigID).Return([]models.Bid{}, nil)
	mockDB.On("CreateBid", mock.AnythingOfType("models.Bid")).Return(nil)

	placed, err := svc.PlaceBid(context.Background(), artistID, models.PlaceBidRequest{
		GigID:    gig.GigID,
		Amount:   9000,
		Proposal: validProposal(),
	})

	assert.NoError(t, err)
	assert.Equal(t, models.BidPending, placed.Status)
	assert.Equal(t, int64(9000), placed.Amount)

	placedEvents := recorder.byType(models.EventBidPlaced)
	assert.Len(t, placedEvents, 2)
	assert.Equal(t, models.GigRoom(gig.GigID), placedEvents[0].Room)
	assert.Equal(t, models.GigArtistRoom(gig.GigID), placedEvents[1].Room)
	assert.Empty(t, recorder.byType(models.EventNewLowerBid))
	mockDB.AssertExpectations(t)
}

func TestPlaceBid_FirstBidOverBudget(t *testing.T) {
	svc, mockDB, mockLock, _ := newTestService()
	gig := liveGig(10000)
	artistID := uuid.NewString()

	allowLock(mockLock, gig.GigID)
	mockDB.On("GetGigByID", gig.GigID).Return(gig, nil)
	mockDB.On("GetActiveBidByArtist", gig.GigID, artistID).Return(nil, nil)
	mockDB.On("GetPendingBidsForGig", gig.GigID).Return([]models.Bid{}, nil)

	_, err := svc.PlaceBid(context.Background(), artistID, models.PlaceBidRequest{
		GigID:    gig.GigID,
		Amount:   10001,
		Proposal: validProposal(),
	})

	assert.ErrorIs(t, err, models.ErrBidOverBudget)
	mockDB.AssertNotCalled(t, "CreateBid", mock.Anything)
}

func TestPlaceBid_MustUndercutCurrentLowest(t *testing.T) {
	svc, mockDB, mockLock, recorder := newTestService()
	gig := liveGig(10000)
	artistA := uuid.NewString()
	artistB := uuid.NewString()

	lowest := models.Bid{BidID: uuid.NewString(), GigID: gig.GigID, ArtistID: artistA, Amount: 9000, Status: models.BidPending}

	allowLock(mockLock, gig.GigID)
	mockDB.On("GetGigByID", gig.GigID).Return(gig, nil)
	mockDB.On("GetActiveBidByArtist", gig.GigID, artistB).Return(nil, nil)
	mockDB.On("GetPendingBidsForGig", gig.GigID).Return([]models.Bid{lowest}, nil)

	// 9500 does not undercut 9000.
	_, err := svc.PlaceBid(context.Background(), artistB, models.PlaceBidRequest{
		GigID:    gig.GigID,
		Amount:   9500,
		Proposal: validProposal(),
	})
	assert.ErrorIs(t, err, models.ErrBidTooHigh)

	// 8000 does; artist A gets the outbid notice.
	mockDB.On("CreateBid", mock.AnythingOfType("models.Bid")).Return(nil)
	placed, err := svc.PlaceBid(context.Background(), artistB, models.PlaceBidRequest{
		GigID:    gig.GigID,
		Amount:   8000,
		Proposal: validProposal(),
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(8000), placed.Amount)

	outbid := recorder.byType(models.EventNewLowerBid)
	assert.Len(t, outbid, 1)
	assert.Equal(t, models.UserRoom(artistA), outbid[0].Room)
	payload := outbid[0].Data.(models.NewLowerBidPayload)
	assert.Equal(t, int64(8000), payload.LowestAmount)
	assert.Equal(t, gig.GigID, payload.GigID)
}

func TestPlaceBid_DuplicateBid(t *testing.T) {
	svc, mockDB, mockLock, _ := newTestService()
	gig := liveGig(10000)
	artistID := uuid.NewString()
	existing := &models.Bid{BidID: uuid.NewString(), GigID: gig.GigID, ArtistID: artistID, Amount: 9000, Status: models.BidPending}

	allowLock(mockLock, gig.GigID)
	mockDB.On("GetGigByID", gig.GigID).Return(gig, nil)
	mockDB.On("GetActiveBidByArtist", gig.GigID, artistID).Return(existing, nil)

	_, err := svc.PlaceBid(context.Background(), artistID, models.PlaceBidRequest{
		GigID:    gig.GigID,
		Amount:   8000,
		Proposal: validProposal(),
	})

	assert.ErrorIs(t, err, models.ErrDuplicateBid)
}

func TestPlaceBid_GigNotLive(t *testing.T) {
	svc, mockDB, mockLock, _ := newTestService()
	gig := liveGig(10000)
	gig.Status = models.GigDraft
	artistID := uuid.NewString()

	allowLock(mockLock, gig.GigID)
	mockDB.On("GetGigByID", gig.GigID).Return(gig, nil)

	_, err := svc.PlaceBid(context.Background(), artistID, models.PlaceBidRequest{
		GigID:    gig.GigID,
		Amount:   8000,
		Proposal: validProposal(),
	})

	assert.ErrorIs(t, err, models.ErrGigNotLive)
}

func TestPlaceBid_GigNotFound(t *testing.T) {
	svc, mockDB, mockLock, _ := newTestService()
	gigID := uuid.NewString()

	allowLock(mockLock, gigID)
	mockDB.On("GetGigByID", gigID).Return(nil, models.ErrGigNotFound)

	_, err := svc.PlaceBid(context.Background(), uuid.NewString(), models.PlaceBidRequest{
		GigID:    gigID,
		Amount:   8000,
		Proposal: validProposal(),
	})

	assert.ErrorIs(t, err, models.ErrGigNotFound)
}

func TestPlaceBid_ProposalTooShort(t *testing.T) {
	svc, mockDB, _, _ := newTestService()

	_, err := svc.PlaceBid(context.Background(), uuid.NewString(), models.PlaceBidRequest{
		GigID:    uuid.NewString(),
		Amount:   8000,
		Proposal: "too short",
	})

	assert.ErrorIs(t, err, models.ErrProposalTooShort)
	mockDB.AssertNotCalled(t, "GetGigByID", mock.Anything)
}

func TestPlaceBid_InvalidAmount(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.PlaceBid(context.Background(), uuid.NewString(), models.PlaceBidRequest{
		GigID:    uuid.NewString(),
		Amount:   0,
		Proposal: validProposal(),
	})

	assert.ErrorIs(t, err, models.ErrInvalidAmount)
}

func TestPlaceBid_LockBusy(t *testing.T) {
	svc, mockDB, mockLock, _ := newTestService()
	gigID := uuid.NewString()

	mockLock.On("Acquire", gigID).Return("", models.ErrGigBusy)

	_, err := svc.PlaceBid(context.Background(), uuid.NewString(), models.PlaceBidRequest{
		GigID:    gigID,
		Amount:   8000,
		Proposal: validProposal(),
	})

	assert.ErrorIs(t, err, models.ErrGigBusy)
	mockDB.AssertNotCalled(t, "GetGigByID", mock.Anything)
}

func TestPlaceBid_CorruptLedgerAborts(t *testing.T) {
	svc, mockDB, mockLock, _ := newTestService()
	gig := liveGig(10000)
	artistID := uuid.NewString()

	// Two pending bids at the same amount can never happen through the
	// ledger; seeing them means the store is corrupted.
	dupes := []models.Bid{
		{BidID: uuid.NewString(), GigID: gig.GigID, Amount: 8000, Status: models.BidPending},
		{BidID: uuid.NewString(), GigID: gig.GigID, Amount: 8000, Status: models.BidPending},
	}

	allowLock(mockLock, gig.GigID)
	mockDB.On("GetGigByID", gig.GigID).Return(gig, nil)
	mockDB.On("GetActiveBidByArtist", gig.GigID, artistID).Return(nil, nil)
	mockDB.On("GetPendingBidsForGig", gig.GigID).Return(dupes, nil)

	_, err := svc.PlaceBid(context.Background(), artistID, models.PlaceBidRequest{
		GigID:    gig.GigID,
		Amount:   7000,
		Proposal: validProposal(),
	})

	assert.Error(t, err)
	_, isDomain := models.AsDomainError(err)
	assert.False(t, isDomain, "corruption must not surface as a client-correctable error")
	mockDB.AssertNotCalled(t, "CreateBid", mock.Anything)
}

func TestUpdateBidAmount_OutbidArtistUndercuts(t *testing.T) {
	svc, mockDB, mockLock, recorder := newTestService()
	gig := liveGig(10000)
	artistA := uuid.NewString()
	artistB := uuid.NewString()

	bidA := &models.Bid{BidID: uuid.NewString(), GigID: gig.GigID, ArtistID: artistA, Amount: 9000, Status: models.BidPending}
	bidB := models.Bid{BidID: uuid.NewString(), GigID: gig.GigID, ArtistID: artistB, Amount: 8000, Status: models.BidPending}

	allowLock(mockLock, gig.GigID)
	mockDB.On("GetBidByID", bidA.BidID).Return(bidA, nil)
	mockDB.On("GetGigByID", gig.GigID).Return(gig, nil)
	mockDB.On("GetPendingBidsForGig", gig.GigID).Return([]models.Bid{bidB, *bidA}, nil)

	// 8500 is not lower than the current lowest 8000.
	_, err := svc.UpdateBidAmount(context.Background(), artistA, bidA.BidID, 8500)
	assert.ErrorIs(t, err, models.ErrBidTooHigh)

	// 7000 takes the lead; B gets the outbid notice.
	mockDB.On("UpdateBidAmount", bidA.BidID, int64(7000)).Return(nil)
	updated, err := svc.UpdateBidAmount(context.Background(), artistA, bidA.BidID, 7000)
	assert.NoError(t, err)
	assert.Equal(t, int64(7000), updated.Amount)

	outbid := recorder.byType(models.EventNewLowerBid)
	assert.Len(t, outbid, 1)
	assert.Equal(t, models.UserRoom(artistB), outbid[0].Room)
	assert.Len(t, recorder.byType(models.EventBidUpdated), 2)
}

func TestUpdateBidAmount_LeadingBidCannotBeLowered(t *testing.T) {
	svc, mockDB, mockLock, _ := newTestService()
	gig := liveGig(10000)
	artistID := uuid.NewString()
	leading := &models.Bid{BidID: uuid.NewString(), GigID: gig.GigID, ArtistID: artistID, Amount: 8000, Status: models.BidPending}

	allowLock(mockLock, gig.GigID)
	mockDB.On("GetBidByID", leading.BidID).Return(leading, nil)
	mockDB.On("GetGigByID", gig.GigID).Return(gig, nil)
	mockDB.On("GetPendingBidsForGig", gig.GigID).Return([]models.Bid{*leading}, nil)

	_, err := svc.UpdateBidAmount(context.Background(), artistID, leading.BidID, 7000)
	assert.ErrorIs(t, err, models.ErrBidIsLeading)
}

func TestUpdateBidAmount_NotOwner(t *testing.T) {
	svc, mockDB, _, _ := newTestService()
	other := &models.Bid{BidID: uuid.NewString(), GigID: uuid.NewString(), ArtistID: uuid.NewString(), Amount: 9000, Status: models.BidPending}

	mockDB.On("GetBidByID", other.BidID).Return(other, nil)

	_, err := svc.UpdateBidAmount(context.Background(), uuid.NewString(), other.BidID, 7000)
	assert.ErrorIs(t, err, models.ErrNotBidOwner)
}

func TestUpdateBidAmount_NotPending(t *testing.T) {
	svc, mockDB, mockLock, _ := newTestService()
	gigID := uuid.NewString()
	artistID := uuid.NewString()
	rejected := &models.Bid{BidID: uuid.NewString(), GigID: gigID, ArtistID: artistID, Amount: 9000, Status: models.BidRejected}

	allowLock(mockLock, gigID)
	mockDB.On("GetBidByID", rejected.BidID).Return(rejected, nil)

	_, err := svc.UpdateBidAmount(context.Background(), artistID, rejected.BidID, 7000)
	assert.ErrorIs(t, err, models.ErrBidNotPending)
}

func TestWithdrawBid_NonLeading(t *testing.T) {
	svc, mockDB, mockLock, recorder := newTestService()
	gig := liveGig(10000)
	artistID := uuid.NewString()

	outbidBid := &models.Bid{BidID: uuid.NewString(), GigID: gig.GigID, ArtistID: artistID, Amount: 9000, Status: models.BidPending}
	lower := models.Bid{BidID: uuid.NewString(), GigID: gig.GigID, ArtistID: uuid.NewString(), Amount: 8000, Status: models.BidPending}

	allowLock(mockLock, gig.GigID)
	mockDB.On("GetBidByID", outbidBid.BidID).Return(outbidBid, nil)
	mockDB.On("GetGigByID", gig.GigID).Return(gig, nil)
	mockDB.On("GetPendingBidsForGig", gig.GigID).Return([]models.Bid{lower, *outbidBid}, nil)
	mockDB.On("UpdateBidStatus", outbidBid.BidID, models.BidWithdrawn).Return(nil)

	err := svc.WithdrawBid(context.Background(), artistID, outbidBid.BidID)
	assert.NoError(t, err)
	assert.Len(t, recorder.byType(models.EventBidStatusUpdated), 2)
	mockDB.AssertExpectations(t)
}

func TestWithdrawBid_LeadingBidRefused(t *testing.T) {
	svc, mockDB, mockLock, _ := newTestService()
	gig := liveGig(10000)
	artistID := uuid.NewString()
	leading := &models.Bid{BidID: uuid.NewString(), GigID: gig.GigID, ArtistID: artistID, Amount: 8000, Status: models.BidPending}

	allowLock(mockLock, gig.GigID)
	mockDB.On("GetBidByID", leading.BidID).Return(leading, nil)
	mockDB.On("GetGigByID", gig.GigID).Return(gig, nil)
	mockDB.On("GetPendingBidsForGig", gig.GigID).Return([]models.Bid{*leading}, nil)

	err := svc.WithdrawBid(context.Background(), artistID, leading.BidID)
	assert.ErrorIs(t, err, models.ErrBidIsLeading)
	mockDB.AssertNotCalled(t, "UpdateBidStatus", mock.Anything, mock.Anything)
}

func TestWithdrawBid_AlreadyWithdrawn(t *testing.T) {
	svc, mockDB, mockLock, _ := newTestService()
	gigID := uuid.NewString()
	artistID := uuid.NewString()
	withdrawn := &models.Bid{BidID: uuid.NewString(), GigID: gigID, ArtistID: artistID, Amount: 9000, Status: models.BidWithdrawn}

	allowLock(mockLock, gigID)
	mockDB.On("GetBidByID", withdrawn.BidID).Return(withdrawn, nil)

	err := svc.WithdrawBid(context.Background(), artistID, withdrawn.BidID)
	assert.ErrorIs(t, err, models.ErrBidNotPending)
	mockDB.AssertNotCalled(t, "UpdateBidStatus", mock.Anything, mock.Anything)
}

func TestGetBid(t *testing.T) {
	svc, mockDB, _, _ := newTestService()
	b := &models.Bid{BidID: uuid.NewString(), GigID: uuid.NewString(), ArtistID: uuid.NewString(), Amount: 9000, Status: models.BidPending}

	mockDB.On("GetBidByID", b.BidID).Return(b, nil)
	got, err := svc.GetBid(context.Background(), b.BidID)
	assert.NoError(t, err)
	assert.Equal(t, b.BidID, got.BidID)

	missing := uuid.NewString()
	mockDB.On("GetBidByID", missing).Return(nil, models.ErrBidNotFound)
	_, err = svc.GetBid(context.Background(), missing)
	assert.ErrorIs(t, err, models.ErrBidNotFound)
}

func TestCurrentLowest(t *testing.T) {
	svc, mockDB, _, _ := newTestService()
	gig := liveGig(10000)

	mockDB.On("GetGigByID", gig.GigID).Return(gig, nil)
	mockDB.On("GetPendingBidsForGig", gig.GigID).Return([]models.Bid{
		{BidID: uuid.NewString(), GigID: gig.GigID, Amount: 7000, Status: models.BidPending},
		{BidID: uuid.NewString(), GigID: gig.GigID, Amount: 8000, Status: models.BidPending},
	}, nil)

	lowest, err := svc.CurrentLowest(context.Background(), gig.GigID)
	assert.NoError(t, err)
	assert.Equal(t, int64(7000), lowest.Amount)
}

func TestCurrentLowest_NoPendingBids(t *testing.T) {
	svc, mockDB, _, _ := newTestService()
	gig := liveGig(10000)

	mockDB.On("GetGigByID", gig.GigID).Return(gig, nil)
	mockDB.On("GetPendingBidsForGig", gig.GigID).Return([]models.Bid{}, nil)

	lowest, err := svc.CurrentLowest(context.Background(), gig.GigID)
	assert.NoError(t, err)
	assert.Nil(t, lowest)
}
