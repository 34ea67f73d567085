package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestQuery_ParsesInstantVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":{"resultType":"vector","result":[{"metric":{"service":"api"},"value":[1700000000,"42.5"]}]}}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	series, err := c.Query(context.Background(), `up`, time.Time{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(series.Points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(series.Points))
	}
	if series.Points[0].Value != 42.5 {
		t.Errorf("expected value 42.5, got %v", series.Points[0].Value)
	}
}

func TestQuery_EmptyResultReturnsEmptySeries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":{"resultType":"vector","result":[]}}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	series, err := c.Query(context.Background(), `up`, time.Time{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(series.Points) != 0 {
		t.Errorf("expected no points, got %d", len(series.Points))
	}
}

func TestQuery_BackendErrorReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL)
	if _, err := c.Query(context.Background(), `up`, time.Time{}); err == nil {
		t.Error("expected error on backend 5xx")
	}
}

func TestRequestVolume_FallsBackOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL)
	rps := c.RequestVolume(context.Background(), "payments", 5*time.Minute)
	if rps != DefaultRequestVolumeFallback {
		t.Errorf("expected fallback rps %v, got %v", DefaultRequestVolumeFallback, rps)
	}
}

func TestErrorRate5xx_FailureReturnsZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL)
	rate := c.ErrorRate5xx(context.Background(), "payments", 5*time.Minute)
	if rate != 0 {
		t.Errorf("expected 0 error rate on failure, got %v", rate)
	}
}

func TestSampleHealth_ComputesAvailabilityFromErrorRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("query")
		if strings.HasPrefix(query, "sum") || strings.HasPrefix(query, "histogram_") {
			w.Write([]byte(`{"status":"success","data":{"resultType":"vector","result":[{"metric":{},"value":[1700000000,"0.05"]}]}}`))
			return
		}
		w.Write([]byte(`{"status":"success","data":{"resultType":"vector","result":[]}}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	health := c.SampleHealth(context.Background(), "payments", time.Now())
	if health.Availability != 0.95 {
		t.Errorf("expected availability 0.95, got %v", health.Availability)
	}
}
