package polymarket

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vigji/mootlib/internal/markets"
)

func TestFetchMarketsOffsetPages(t *testing.T) {
	var offsets []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets" {
			http.NotFound(w, r)
			return
		}
		offsets = append(offsets, r.URL.Query().Get("offset"))
		switch r.URL.Query().Get("offset") {
		case "0":
			fmt.Fprint(w, `[
				{"id":"p1","question":"Will A win?","slug":"will-a-win",
					"outcomes":"[\"Yes\",\"No\"]","outcomePrices":"[\"0.65\",\"0.35\"]",
					"volumeNum":5000,"createdAt":"2026-01-10T00:00:00Z","active":true,"closed":false},
				{"id":"p2","question":"Closed market","slug":"closed",
					"outcomes":"[\"Yes\",\"No\"]","outcomePrices":"[\"1\",\"0\"]",
					"volumeNum":9000,"createdAt":"2025-06-01T00:00:00Z","active":true,"closed":true}
			]`)
		case "2":
			fmt.Fprint(w, `[
				{"id":"p3","question":"Low volume","slug":"low",
					"outcomes":"[\"Yes\",\"No\"]","outcomePrices":"[\"0.5\",\"0.5\"]",
					"volumeNum":10,"createdAt":"2026-01-11T00:00:00Z","active":true,"closed":false}
			]`)
		default:
			fmt.Fprint(w, `[]`)
		}
	}))
	defer srv.Close()

	s := New(Config{BaseURL: srv.URL, PageSize: 2, MaxPages: 10, PageDelay: -1})
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	raws, err := s.FetchMarkets(context.Background(), markets.MarketFilter{OnlyOpen: true, MinVolume: 100})
	if err != nil {
		t.Fatalf("FetchMarkets: %v", err)
	}
	if len(raws) != 1 {
		t.Fatalf("got %d records, want 1 (closed and low-volume dropped)", len(raws))
	}
	// Second page was short, so no third request goes out.
	if len(offsets) != 2 || offsets[0] != "0" || offsets[1] != "2" {
		t.Fatalf("offsets = %v", offsets)
	}

	pm, err := raws[0].ToPooled()
	if err != nil {
		t.Fatalf("ToPooled: %v", err)
	}
	if pm.ID != "polymarket_p1" {
		t.Fatalf("ID = %q", pm.ID)
	}
	if pm.URL != "https://polymarket.com/event/will-a-win" {
		t.Fatalf("URL = %q", pm.URL)
	}
	if pm.FormattedOutcomes != "Yes: 65.0%; No: 35.0%" {
		t.Fatalf("FormattedOutcomes = %q", pm.FormattedOutcomes)
	}
	if pm.MarketType != "BINARY" {
		t.Fatalf("MarketType = %q", pm.MarketType)
	}
}

func TestFromAPINestedJSONStrings(t *testing.T) {
	m, err := fromAPI(marketJSON{
		ID:            "x1",
		Question:      "Which outcome?",
		Outcomes:      `["A","B","C"]`,
		OutcomePrices: `["0.5","0.3"]`,
	})
	if err != nil {
		t.Fatalf("fromAPI: %v", err)
	}
	if len(m.Outcomes) != 3 {
		t.Fatalf("outcomes = %v", m.Outcomes)
	}
	// Missing third price pads with unknown instead of truncating.
	if m.Probabilities[2] != nil {
		t.Fatalf("expected unknown third probability, got %v", *m.Probabilities[2])
	}
	if m.Probabilities[0] == nil || *m.Probabilities[0] != 0.5 {
		t.Fatalf("probabilities = %v", m.Probabilities)
	}
	if m.marketType() != "CATEGORICAL" {
		t.Fatalf("marketType = %q", m.marketType())
	}
}

func TestFromAPIRejectsMissingIdentity(t *testing.T) {
	if _, err := fromAPI(marketJSON{ID: "", Question: "Q?"}); err == nil {
		t.Fatalf("expected error for missing id")
	}
	if _, err := fromAPI(marketJSON{ID: "1", Question: ""}); err == nil {
		t.Fatalf("expected error for missing question")
	}
}

func TestFromAPIBadOutcomesJSON(t *testing.T) {
	if _, err := fromAPI(marketJSON{ID: "1", Question: "Q?", Outcomes: "not json"}); err == nil {
		t.Fatalf("expected parse error for malformed outcomes")
	}
}
