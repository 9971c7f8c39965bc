package service_test

import (
	"context"
	"testing"

	"github.com/nexml/marketplace-server/internal/models"
	"github.com/nexml/marketplace-server/internal/payment"
	"github.com/nexml/marketplace-server/internal/repository"
	"github.com/nexml/marketplace-server/internal/service"
	"github.com/stretchr/testify/assert"
)

const (
	alice = "alice"
	bob   = "bob"
	carol = "carol"
)

func newTestService() (service.Service, *payment.MemorySettler) {
	settler := payment.NewMemorySettler()
	svc := service.NewMarketplaceService(repository.NewMemoryRepository(), settler, "test-secret-key")
	return svc, settler
}

func mustUpload(t *testing.T, svc service.Service, caller string, req models.UploadModelRequest) string {
	t.Helper()

	model, err := svc.UploadModel(context.Background(), caller, req)
	assert.NoError(t, err)
	assert.NotEmpty(t, model.ID)
	return model.ID
}

func TestUploadModel(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	// Valid upload round-trips every field with the caller as owner
	modelID := mustUpload(t, svc, alice, models.UploadModelRequest{
		ContentRef: "QmTestHash123",
		ForRent:    true,
		ForSale:    false,
		RentPrice:  1,
		SalePrice:  0,
	})

	model, err := svc.GetModel(ctx, modelID)
	assert.NoError(t, err)
	assert.Equal(t, "QmTestHash123", model.ContentRef)
	assert.Equal(t, alice, model.Owner)
	assert.True(t, model.ForRent)
	assert.False(t, model.ForSale)
	assert.Equal(t, int64(1), model.RentPrice)
	assert.Equal(t, int64(0), model.SalePrice)
}

func TestUploadModelValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	// Empty content ref fails regardless of other fields
	_, err := svc.UploadModel(ctx, alice, models.UploadModelRequest{
		ContentRef: "",
		ForRent:    true,
		RentPrice:  1,
	})
	assert.Error(t, err)
	assert.Equal(t, service.KindInvalidInput, service.KindOf(err))
	assert.EqualError(t, err, "content reference is required")

	// For-sale with zero price fails
	_, err = svc.UploadModel(ctx, alice, models.UploadModelRequest{
		ContentRef: "QmTestHash123",
		ForSale:    true,
		SalePrice:  0,
	})
	assert.Error(t, err)
	assert.Equal(t, service.KindInvalidInput, service.KindOf(err))
	assert.EqualError(t, err, "sale price is required")

	// For-rent with zero price fails
	_, err = svc.UploadModel(ctx, alice, models.UploadModelRequest{
		ContentRef: "QmTestHash123",
		ForRent:    true,
		RentPrice:  0,
	})
	assert.Error(t, err)
	assert.EqualError(t, err, "rent price is required")

	// Content ref emptiness wins over price errors, sale price over rent price
	_, err = svc.UploadModel(ctx, alice, models.UploadModelRequest{
		ContentRef: "",
		ForSale:    true,
		ForRent:    true,
	})
	assert.EqualError(t, err, "content reference is required")

	_, err = svc.UploadModel(ctx, alice, models.UploadModelRequest{
		ContentRef: "QmTestHash123",
		ForSale:    true,
		ForRent:    true,
	})
	assert.EqualError(t, err, "sale price is required")

	// Positive prices succeed
	_, err = svc.UploadModel(ctx, alice, models.UploadModelRequest{
		ContentRef: "QmTestHash123",
		ForSale:    true,
		SalePrice:  1,
	})
	assert.NoError(t, err)
}

func TestUploadModelUserIndex(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	// Two sequential uploads by the same caller produce two distinct ids,
	// retrievable at positions 0 and 1 of the caller's index.
	first := mustUpload(t, svc, alice, models.UploadModelRequest{
		ContentRef: "QmTestHash123", ForRent: true, RentPrice: 1,
	})
	second := mustUpload(t, svc, alice, models.UploadModelRequest{
		ContentRef: "QmTestHash456", ForSale: true, SalePrice: 2,
	})
	assert.NotEqual(t, first, second)

	ids, err := svc.GetUserModels(ctx, alice)
	assert.NoError(t, err)
	assert.Equal(t, []string{first, second}, ids)
}

func TestUpdateModelState(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	modelID := mustUpload(t, svc, alice, models.UploadModelRequest{
		ContentRef: "QmTestHash", ForRent: true, ForSale: true, RentPrice: 1, SalePrice: 1,
	})

	// Owner may rewrite every mutable field
	err := svc.UpdateModelState(ctx, alice, modelID, models.UpdateModelRequest{
		ContentRef: "QmUpdatedHash",
		ForRent:    false,
		ForSale:    true,
		RentPrice:  2,
		SalePrice:  2,
	})
	assert.NoError(t, err)

	model, err := svc.GetModel(ctx, modelID)
	assert.NoError(t, err)
	assert.Equal(t, "QmUpdatedHash", model.ContentRef)
	assert.False(t, model.ForRent)
	assert.True(t, model.ForSale)
	assert.Equal(t, int64(2), model.RentPrice)
	assert.Equal(t, int64(2), model.SalePrice)
	assert.Equal(t, alice, model.Owner)

	// Non-owner is rejected
	err = svc.UpdateModelState(ctx, bob, modelID, models.UpdateModelRequest{
		ContentRef: "QmEvilHash", ForSale: true, SalePrice: 1,
	})
	assert.Equal(t, service.KindForbidden, service.KindOf(err))
	assert.EqualError(t, err, "caller is not the model owner")

	// Unknown model is rejected
	err = svc.UpdateModelState(ctx, alice, "no-such-model", models.UpdateModelRequest{
		ContentRef: "QmUpdatedHash",
	})
	assert.Equal(t, service.KindNotFound, service.KindOf(err))

	// Update intentionally skips price re-validation: flags may be set
	// true with zero prices.
	err = svc.UpdateModelState(ctx, alice, modelID, models.UpdateModelRequest{
		ContentRef: "QmUpdatedHash",
		ForSale:    true,
		SalePrice:  0,
	})
	assert.NoError(t, err)
}

func TestGetModelNotFound(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.GetModel(context.Background(), "no-such-model")
	assert.Error(t, err)
	assert.Equal(t, service.KindNotFound, service.KindOf(err))
	assert.EqualError(t, err, "model does not exist")
}

func TestPurchaseModel(t *testing.T) {
	svc, settler := newTestService()
	ctx := context.Background()

	modelID := mustUpload(t, svc, alice, models.UploadModelRequest{
		ContentRef: "QmTestHash", ForSale: true, SalePrice: 1000, ForRent: true, RentPrice: 100,
	})

	err := svc.PurchaseModel(ctx, bob, modelID, 1000)
	assert.NoError(t, err)

	// Ownership moved to the buyer and nothing else changed
	model, err := svc.GetModel(ctx, modelID)
	assert.NoError(t, err)
	assert.Equal(t, bob, model.Owner)
	assert.Equal(t, "QmTestHash", model.ContentRef)
	assert.True(t, model.ForSale)
	assert.Equal(t, int64(1000), model.SalePrice)
	assert.True(t, model.ForRent)
	assert.Equal(t, int64(100), model.RentPrice)

	// Payment settled to the prior owner
	transfers := settler.Transfers()
	assert.Len(t, transfers, 1)
	assert.Equal(t, bob, transfers[0].Payer)
	assert.Equal(t, alice, transfers[0].Recipient)
	assert.Equal(t, int64(1000), transfers[0].Amount)

	// The creation index still lists the model under its creator
	ids, err := svc.GetUserModels(ctx, alice)
	assert.NoError(t, err)
	assert.Equal(t, []string{modelID}, ids)

	ids, err = svc.GetUserModels(ctx, bob)
	assert.NoError(t, err)
	assert.Empty(t, ids)
}

func TestPurchaseModelRejections(t *testing.T) {
	svc, settler := newTestService()
	ctx := context.Background()

	modelID := mustUpload(t, svc, alice, models.UploadModelRequest{
		ContentRef: "QmTestHash", ForSale: true, SalePrice: 1000,
	})

	// Unknown model
	err := svc.PurchaseModel(ctx, bob, "no-such-model", 1000)
	assert.Equal(t, service.KindNotFound, service.KindOf(err))

	// Under- and over-payment both rejected, ownership unchanged
	err = svc.PurchaseModel(ctx, bob, modelID, 500)
	assert.Equal(t, service.KindInvalidInput, service.KindOf(err))
	assert.EqualError(t, err, "incorrect payment amount")

	err = svc.PurchaseModel(ctx, bob, modelID, 1500)
	assert.Equal(t, service.KindInvalidInput, service.KindOf(err))

	model, err := svc.GetModel(ctx, modelID)
	assert.NoError(t, err)
	assert.Equal(t, alice, model.Owner)

	// Owner cannot purchase their own model, even at the right price
	err = svc.PurchaseModel(ctx, alice, modelID, 1000)
	assert.Equal(t, service.KindForbidden, service.KindOf(err))
	assert.EqualError(t, err, "owner cannot purchase their own model")

	// Not-for-sale model
	rentOnly := mustUpload(t, svc, alice, models.UploadModelRequest{
		ContentRef: "QmTestHash2", ForRent: true, RentPrice: 100,
	})
	err = svc.PurchaseModel(ctx, bob, rentOnly, 1000)
	assert.Equal(t, service.KindInvalidState, service.KindOf(err))
	assert.EqualError(t, err, "model is not for sale")

	// No payment was settled by any rejected attempt
	assert.Empty(t, settler.Transfers())
}

func TestRentModel(t *testing.T) {
	svc, settler := newTestService()
	ctx := context.Background()

	modelID := mustUpload(t, svc, alice, models.UploadModelRequest{
		ContentRef: "QmTestHash", ForRent: true, RentPrice: 100,
	})

	err := svc.RentModel(ctx, bob, modelID, 100)
	assert.NoError(t, err)

	// Ownership did not change
	model, err := svc.GetModel(ctx, modelID)
	assert.NoError(t, err)
	assert.Equal(t, alice, model.Owner)

	renters, err := svc.GetModelRenters(ctx, modelID)
	assert.NoError(t, err)
	assert.Equal(t, []string{bob}, renters)

	// A second renter appends independently, and repeat rentals by the
	// same renter each add a new entry.
	err = svc.RentModel(ctx, carol, modelID, 100)
	assert.NoError(t, err)
	err = svc.RentModel(ctx, bob, modelID, 100)
	assert.NoError(t, err)

	renters, err = svc.GetModelRenters(ctx, modelID)
	assert.NoError(t, err)
	assert.Equal(t, []string{bob, carol, bob}, renters)

	transfers := settler.Transfers()
	assert.Len(t, transfers, 3)
	for _, tr := range transfers {
		assert.Equal(t, alice, tr.Recipient)
		assert.Equal(t, int64(100), tr.Amount)
	}
}

func TestRentModelRejections(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	modelID := mustUpload(t, svc, alice, models.UploadModelRequest{
		ContentRef: "QmTestHash", ForRent: true, RentPrice: 100,
	})

	err := svc.RentModel(ctx, bob, "no-such-model", 100)
	assert.Equal(t, service.KindNotFound, service.KindOf(err))

	err = svc.RentModel(ctx, bob, modelID, 50)
	assert.Equal(t, service.KindInvalidInput, service.KindOf(err))
	assert.EqualError(t, err, "incorrect payment amount")

	err = svc.RentModel(ctx, alice, modelID, 100)
	assert.Equal(t, service.KindForbidden, service.KindOf(err))
	assert.EqualError(t, err, "owner cannot rent their own model")

	saleOnly := mustUpload(t, svc, alice, models.UploadModelRequest{
		ContentRef: "QmTestHash2", ForSale: true, SalePrice: 1000,
	})
	err = svc.RentModel(ctx, bob, saleOnly, 100)
	assert.Equal(t, service.KindInvalidState, service.KindOf(err))
	assert.EqualError(t, err, "model is not for rent")

	renters, err := svc.GetModelRenters(ctx, modelID)
	assert.NoError(t, err)
	assert.Empty(t, renters)
}

func TestRateModel(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	modelID := mustUpload(t, svc, alice, models.UploadModelRequest{
		ContentRef: "QmTestHash", ForRent: true, RentPrice: 100,
	})

	err := svc.RateModel(ctx, bob, modelID, 5, "Great model!")
	assert.NoError(t, err)

	// Same rater cannot rate twice
	err = svc.RateModel(ctx, bob, modelID, 4, "Changed my mind")
	assert.Equal(t, service.KindConflict, service.KindOf(err))
	assert.EqualError(t, err, "rater has already reviewed this model")

	// Different raters rate independently; the owner may rate too
	err = svc.RateModel(ctx, carol, modelID, 4, "Good model!")
	assert.NoError(t, err)
	err = svc.RateModel(ctx, alice, modelID, 5, "Excellent model!")
	assert.NoError(t, err)

	ratings, err := svc.GetModelRatings(ctx, modelID)
	assert.NoError(t, err)
	assert.Len(t, ratings, 3)
}

func TestRateModelValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	modelID := mustUpload(t, svc, alice, models.UploadModelRequest{
		ContentRef: "QmTestHash", ForRent: true, RentPrice: 100,
	})

	err := svc.RateModel(ctx, bob, "no-such-model", 5, "Non-existent model")
	assert.Equal(t, service.KindNotFound, service.KindOf(err))

	for _, score := range []int{0, 6, -1} {
		err = svc.RateModel(ctx, bob, modelID, score, "Invalid rating")
		assert.Equal(t, service.KindInvalidInput, service.KindOf(err))
		assert.EqualError(t, err, "rating must be between 1 and 5")
	}

	for i, score := range []int{1, 2, 3, 4, 5} {
		rater := string(rune('a'+i)) + "-rater"
		err = svc.RateModel(ctx, rater, modelID, score, "")
		assert.NoError(t, err)
	}
}

func TestSetDIDAndGetUserProfile(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	// Empty DID rejected
	err := svc.SetDID(ctx, alice, "")
	assert.Equal(t, service.KindInvalidInput, service.KindOf(err))
	assert.EqualError(t, err, "DID is required")

	err = svc.SetDID(ctx, alice, "did:example:123456789")
	assert.NoError(t, err)

	profile, err := svc.GetUserProfile(ctx, alice)
	assert.NoError(t, err)
	assert.Equal(t, "did:example:123456789", profile.DID)

	// Unconditional overwrite
	err = svc.SetDID(ctx, alice, "did:example:987654321")
	assert.NoError(t, err)

	profile, err = svc.GetUserProfile(ctx, alice)
	assert.NoError(t, err)
	assert.Equal(t, "did:example:987654321", profile.DID)

	// Never-set profiles read back as an empty default, not an error
	profile, err = svc.GetUserProfile(ctx, bob)
	assert.NoError(t, err)
	assert.Equal(t, bob, profile.Identity)
	assert.Empty(t, profile.DID)
}

func TestEventLog(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	modelID := mustUpload(t, svc, alice, models.UploadModelRequest{
		ContentRef: "QmTestHash", ForSale: true, SalePrice: 1000, ForRent: true, RentPrice: 100,
	})

	assert.NoError(t, svc.RentModel(ctx, bob, modelID, 100))
	assert.NoError(t, svc.PurchaseModel(ctx, bob, modelID, 1000))
	assert.NoError(t, svc.RateModel(ctx, carol, modelID, 4, "Good model!"))

	events, err := svc.GetModelEvents(ctx, modelID)
	assert.NoError(t, err)
	assert.Len(t, events, 4)

	assert.Equal(t, models.EventModelUploaded, events[0].Type)
	assert.Equal(t, alice, events[0].Actor)

	assert.Equal(t, models.EventModelRented, events[1].Type)
	assert.Equal(t, bob, events[1].Actor)
	assert.Equal(t, int64(100), events[1].Amount)

	assert.Equal(t, models.EventModelPurchased, events[2].Type)
	assert.Equal(t, bob, events[2].Actor)
	assert.Equal(t, int64(1000), events[2].Amount)

	assert.Equal(t, models.EventModelRated, events[3].Type)
	assert.Equal(t, carol, events[3].Actor)
	assert.Equal(t, 4, events[3].Score)
	assert.Equal(t, "Good model!", events[3].Comment)

	// Rejected operations leave no trace in the log
	assert.Error(t, svc.RentModel(ctx, carol, modelID, 1))
	events, err = svc.GetModelEvents(ctx, modelID)
	assert.NoError(t, err)
	assert.Len(t, events, 4)
}
