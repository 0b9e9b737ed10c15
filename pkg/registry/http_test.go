package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/lifelink-health/registry/pkg/common/models"
	"github.com/lifelink-health/registry/pkg/middleware"
)

func newTestRouter(store *fakeStore) *mux.Router {
	svc, _ := newTestService(store)
	handler := NewHTTPHandler(svc, nil, 1<<20)

	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()
	handler.Register(api)
	admin := api.PathPrefix("/admin").Subrouter()
	handler.RegisterAdmin(admin)
	return router
}

func doRequest(t *testing.T, router *mux.Router, method, path string, body interface{}, user *models.User) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if user != nil {
		req = req.WithContext(middleware.WithUser(req.Context(), *user))
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleSuggestStatusCodes(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store)

	rec := doRequest(t, router, http.MethodGet, "/api/admin/matches/suggest/not-a-uuid", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed id: expected 400, got %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/admin/matches/suggest/"+uuid.NewString(), nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing request: expected 404, got %d", rec.Code)
	}

	donorID := uuid.New()
	store.donorNames[donorID] = "Asha Rao"
	store.addDonation(models.Donation{
		OrganType: models.OrganKidney, BloodGroup: models.ONeg, DonorID: donorID,
		CreatedAt: time.Now().UTC(),
	})
	request := store.addRequest(models.OrganRequest{
		RecipientID: uuid.New(), OrganType: models.OrganKidney, BloodGroup: models.ABPos,
	})

	rec = doRequest(t, router, http.MethodGet, "/api/admin/matches/suggest/"+request.ID.String(), nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var suggestions []models.Suggestion
	if err := json.NewDecoder(rec.Body).Decode(&suggestions); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(suggestions) != 1 || suggestions[0].DonorName != "Asha Rao" {
		t.Errorf("unexpected payload: %+v", suggestions)
	}
}

func TestHandleAllocateStatusCodes(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store)

	donation := store.addDonation(models.Donation{
		OrganType: models.OrganKidney, BloodGroup: models.ONeg, DonorID: uuid.New(),
	})
	request := store.addRequest(models.OrganRequest{
		RecipientID: uuid.New(), OrganType: models.OrganKidney, BloodGroup: models.APos,
	})

	missing := allocateParams(donation, request)
	missing.RequestID = uuid.New()
	rec := doRequest(t, router, http.MethodPost, "/api/admin/matches", missing, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing request: expected 404, got %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodPost, "/api/admin/matches", allocateParams(donation, request), nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	// Replaying the approval must surface the conflict, not a second match.
	rec = doRequest(t, router, http.MethodPost, "/api/admin/matches", allocateParams(donation, request), nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("replayed allocation: expected 409, got %d", rec.Code)
	}
}

func TestHandleRegisterDonation(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store)
	donor := models.User{ID: uuid.New(), Role: models.RoleDonor}

	rec := doRequest(t, router, http.MethodPost, "/api/organs", models.DonationIntake{
		OrganType: models.OrganHeart, BloodGroup: models.BNeg,
	}, &donor)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodPost, "/api/organs", models.DonationIntake{
		OrganType: "SPLEEN", BloodGroup: models.BNeg,
	}, &donor)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown organ type: expected 400, got %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodPost, "/api/organs", models.DonationIntake{
		OrganType: models.OrganHeart, BloodGroup: models.BNeg,
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous intake: expected 401, got %d", rec.Code)
	}
}

func TestHandleListOrgansValidatesFilters(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store)

	rec := doRequest(t, router, http.MethodGet, "/api/organs?type=SPLEEN", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown filter: expected 400, got %d", rec.Code)
	}

	store.addDonation(models.Donation{
		OrganType: models.OrganKidney, BloodGroup: models.ONeg, DonorID: uuid.New(),
	})

	rec = doRequest(t, router, http.MethodGet, fmt.Sprintf("/api/organs?type=%s&bloodGroup=%s", models.OrganKidney, models.ONeg), nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var donations []models.Donation
	if err := json.NewDecoder(rec.Body).Decode(&donations); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(donations) != 1 {
		t.Errorf("expected one available donation, got %d", len(donations))
	}
}

func TestHandleRejectRequest(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(store)

	request := store.addRequest(models.OrganRequest{
		RecipientID: uuid.New(), OrganType: models.OrganLungs, BloodGroup: models.ABNeg,
	})

	rec := doRequest(t, router, http.MethodPost, "/api/admin/requests/"+request.ID.String()+"/reject", models.RejectRequestInput{Note: "duplicate request"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodPost, "/api/admin/requests/"+request.ID.String()+"/reject", nil, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("repeat rejection: expected 409, got %d", rec.Code)
	}
}
