package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/storefront/backend/internal/interfaces/http/dto"
	"github.com/storefront/backend/tests/testutil"
	"github.com/stretchr/testify/assert"
)

func withOrderID(id string) func(t *testing.T, tc *testutil.TestContext) {
	return func(t *testing.T, tc *testutil.TestContext) {
		tc.Context.Params = gin.Params{{Key: "id", Value: id}}
		tc.SetActor(testutil.AdminActor())
	}
}

func expectError(code string) func(t *testing.T, tc *testutil.TestContext) {
	return func(t *testing.T, tc *testutil.TestContext) {
		testutil.AssertErrorResponse(t, tc, code)
	}
}

func TestCartHandler_UpsertItemValidation(t *testing.T) {
	sf := newStorefront(t)
	asCustomer := func(t *testing.T, tc *testutil.TestContext) { tc.SetActor(sf.customer) }

	testutil.RunHTTPTestCases(t, sf.cart.UpsertItem, []testutil.HTTPTestCase{
		{
			Name:           "zero quantity",
			Method:         http.MethodPut,
			Body:           map[string]any{"product_id": sf.variant.ProductID, "variant_id": sf.variant.ID, "quantity": 0},
			Setup:          asCustomer,
			ExpectedStatus: http.StatusBadRequest,
			Validate:       expectError(dto.ErrCodeValidation),
		},
		{
			Name:           "quantity above limit",
			Method:         http.MethodPut,
			Body:           map[string]any{"product_id": sf.variant.ProductID, "variant_id": sf.variant.ID, "quantity": 1000},
			Setup:          asCustomer,
			ExpectedStatus: http.StatusBadRequest,
			Validate:       expectError(dto.ErrCodeValidation),
		},
		{
			Name:           "missing variant",
			Method:         http.MethodPut,
			Body:           map[string]any{"product_id": sf.variant.ProductID, "quantity": 1},
			Setup:          asCustomer,
			ExpectedStatus: http.StatusBadRequest,
			Validate:       expectError(dto.ErrCodeValidation),
		},
		{
			Name:           "unknown variant",
			Method:         http.MethodPut,
			Body:           map[string]any{"product_id": sf.variant.ProductID, "variant_id": uuid.New(), "quantity": 1},
			Setup:          asCustomer,
			ExpectedStatus: http.StatusBadRequest,
			Validate:       expectError(dto.ErrCodeInvalidCart),
		},
		{
			Name:           "valid line",
			Method:         http.MethodPut,
			Body:           map[string]any{"product_id": sf.variant.ProductID, "variant_id": sf.variant.ID, "quantity": 3},
			Setup:          asCustomer,
			ExpectedStatus: http.StatusOK,
			ExpectedBody:   map[string]any{"success": true},
			Validate: func(t *testing.T, tc *testutil.TestContext) {
				resp := testutil.JSONResponse(t, tc)
				data, _ := resp["data"].(map[string]any)
				assert.EqualValues(t, 3, data["total_quantity"])
			},
		},
	})
}

func TestOrderHandler_RequestValidation(t *testing.T) {
	sf := newStorefront(t)
	o := sf.placeOrder(t)

	t.Run("status", func(t *testing.T) {
		testutil.RunHTTPTestCases(t, sf.orders.UpdateStatus, []testutil.HTTPTestCase{
			{
				Name:           "malformed id",
				Method:         http.MethodPut,
				Body:           map[string]any{"status": "shipped"},
				Setup:          withOrderID("not-a-uuid"),
				ExpectedStatus: http.StatusBadRequest,
				Validate:       expectError(dto.ErrCodeBadRequest),
			},
			{
				Name:           "unknown status",
				Method:         http.MethodPut,
				Body:           map[string]any{"status": "teleported"},
				Setup:          withOrderID(o.ID.String()),
				ExpectedStatus: http.StatusBadRequest,
				Validate:       expectError(dto.ErrCodeValidation),
			},
			{
				Name:           "localized alias",
				Method:         http.MethodPut,
				Body:           map[string]any{"status": "enviado"},
				Setup:          withOrderID(o.ID.String()),
				ExpectedStatus: http.StatusOK,
				Validate:       func(t *testing.T, tc *testutil.TestContext) { testutil.AssertSuccessResponse(t, tc) },
			},
		})
	})

	t.Run("location", func(t *testing.T) {
		testutil.RunHTTPTestCases(t, sf.orders.UpdateLocation, []testutil.HTTPTestCase{
			{
				Name:           "missing coordinates",
				Method:         http.MethodPut,
				Body:           map[string]any{"status": "in_transit"},
				Setup:          withOrderID(o.ID.String()),
				ExpectedStatus: http.StatusBadRequest,
				Validate:       expectError(dto.ErrCodeValidation),
			},
			{
				Name:           "latitude out of range",
				Method:         http.MethodPut,
				Body:           map[string]any{"lat": 95.0, "lng": 10.0},
				Setup:          withOrderID(o.ID.String()),
				ExpectedStatus: http.StatusBadRequest,
				Validate:       expectError(dto.ErrCodeValidation),
			},
			{
				Name:           "unknown order",
				Method:         http.MethodPut,
				Body:           map[string]any{"lat": 10.0, "lng": 10.0},
				Setup:          withOrderID(uuid.NewString()),
				ExpectedStatus: http.StatusNotFound,
				Validate:       expectError(dto.ErrCodeNotFound),
			},
		})
	})
}

func TestReturnHandler_RequestValidation(t *testing.T) {
	sf := newStorefront(t)
	asCustomer := func(t *testing.T, tc *testutil.TestContext) { tc.SetActor(sf.customer) }

	testutil.RunHTTPTestCases(t, sf.returns.RequestReturn, []testutil.HTTPTestCase{
		{
			Name:           "missing reason",
			Method:         http.MethodPost,
			Body:           map[string]any{"order_id": uuid.New()},
			Setup:          asCustomer,
			ExpectedStatus: http.StatusBadRequest,
			Validate:       expectError(dto.ErrCodeValidation),
		},
		{
			Name:           "unsupported method",
			Method:         http.MethodPost,
			Body:           map[string]any{"order_id": uuid.New(), "reason": "Too small", "method": "store_credit"},
			Setup:          asCustomer,
			ExpectedStatus: http.StatusBadRequest,
			Validate:       expectError(dto.ErrCodeValidation),
		},
	})
}
