package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/localmarket/marketplace-backend/internal/matching"
	pkgerrors "github.com/localmarket/marketplace-backend/pkg/errors"
)

type stubMatchingService struct {
	fn func(ctx context.Context, input matching.MatchInput) (*matching.MatchResponse, error)
}

func (s *stubMatchingService) MatchOrder(ctx context.Context, input matching.MatchInput) (*matching.MatchResponse, error) {
	return s.fn(ctx, input)
}

func TestMatchCouriersPassesBuyerLocation(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()
	var captured matching.MatchInput
	svc := &stubMatchingService{fn: func(ctx context.Context, input matching.MatchInput) (*matching.MatchResponse, error) {
		captured = input
		return &matching.MatchResponse{
			OrderID:    orderID,
			Region:     matching.RegionDTO{Country: "NL", Policy: "mainland_radius"},
			Candidates: []matching.CandidateDTO{},
		}, nil
	}}

	req := newRequest(http.MethodGet, "/api/v1/orders/"+orderID.String()+"/couriers?buyerLat=52.37&buyerLng=4.89", userID, map[string]string{"orderId": orderID.String()})
	resp := httptest.NewRecorder()
	MatchCouriers(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if captured.OrderID != orderID || captured.CallerID != userID {
		t.Fatalf("unexpected input %+v", captured)
	}
	if captured.BuyerLatitude == nil || *captured.BuyerLatitude != 52.37 {
		t.Fatalf("expected buyer latitude 52.37 got %v", captured.BuyerLatitude)
	}
	if captured.BuyerLongitude == nil || *captured.BuyerLongitude != 4.89 {
		t.Fatalf("expected buyer longitude 4.89 got %v", captured.BuyerLongitude)
	}

	var envelope struct {
		Data struct {
			TotalMatches int   `json:"totalMatches"`
			Candidates   []any `json:"candidates"`
			Region       struct {
				Country string `json:"country"`
			} `json:"region"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Candidates == nil || envelope.Data.TotalMatches != 0 {
		t.Fatalf("expected empty candidate array got %+v", envelope.Data)
	}
	if envelope.Data.Region.Country != "NL" {
		t.Fatalf("unexpected region %+v", envelope.Data.Region)
	}
}

func TestMatchCouriersWithoutBuyerLocation(t *testing.T) {
	svc := &stubMatchingService{fn: func(ctx context.Context, input matching.MatchInput) (*matching.MatchResponse, error) {
		if input.BuyerLatitude != nil || input.BuyerLongitude != nil {
			t.Fatalf("expected no buyer coordinates, got %+v", input)
		}
		return &matching.MatchResponse{Candidates: []matching.CandidateDTO{}}, nil
	}}

	orderID := uuid.NewString()
	req := newRequest(http.MethodGet, "/", uuid.New(), map[string]string{"orderId": orderID})
	resp := httptest.NewRecorder()
	MatchCouriers(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestMatchCouriersRejectsBadQuery(t *testing.T) {
	cases := map[string]string{
		"non numeric":  "/?buyerLat=north&buyerLng=4.89",
		"out of range": "/?buyerLat=95&buyerLng=4.89",
		"bad lng":      "/?buyerLat=52&buyerLng=200",
	}
	svc := &stubMatchingService{fn: func(ctx context.Context, input matching.MatchInput) (*matching.MatchResponse, error) {
		t.Fatalf("service must not be called")
		return nil, nil
	}}

	for name, target := range cases {
		req := newRequest(http.MethodGet, target, uuid.New(), map[string]string{"orderId": uuid.NewString()})
		resp := httptest.NewRecorder()
		MatchCouriers(svc, testLogger())(resp, req)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", name, resp.Code)
		}
	}
}

func TestMatchCouriersMissingOrderID(t *testing.T) {
	svc := &stubMatchingService{}

	req := newRequest(http.MethodGet, "/", uuid.New(), nil)
	resp := httptest.NewRecorder()
	MatchCouriers(svc, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestMatchCouriersOrderNotFound(t *testing.T) {
	svc := &stubMatchingService{fn: func(ctx context.Context, input matching.MatchInput) (*matching.MatchResponse, error) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}}

	req := newRequest(http.MethodGet, "/", uuid.New(), map[string]string{"orderId": uuid.NewString()})
	resp := httptest.NewRecorder()
	MatchCouriers(svc, testLogger())(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
	if env := decodeError(t, resp); env.Error.Message != "order not found" {
		t.Fatalf("unexpected message %q", env.Error.Message)
	}
}
