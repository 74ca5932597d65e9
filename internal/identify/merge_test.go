package identify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/example/cattle-id/internal/classifier"
	"github.com/example/cattle-id/internal/husbandry"
	"github.com/example/cattle-id/internal/logging"
	"github.com/example/cattle-id/internal/normalizer"
	"github.com/example/cattle-id/internal/resolver"
)

func cowAProfile() husbandry.Profile {
	return husbandry.Profile{
		NextVaccination: husbandry.Date{Year: 2025, Month: time.August, Day: 20},
		WaterNeed:       husbandry.Quantity{Amount: 40, Unit: "Liters/day"},
		FoodNeed:        husbandry.Quantity{Amount: 25, Unit: "kg/day"},
	}
}

func profileTable(t *testing.T) *husbandry.Table {
	t.Helper()
	table, err := husbandry.NewTable(map[classifier.Label]husbandry.Profile{"CowA": cowAProfile()})
	if err != nil {
		t.Fatalf("build table: %v", err)
	}
	return table
}

func TestMergeWithoutLocation(t *testing.T) {
	resp, err := Merge(resolver.Result{Label: "CowA", Confidence: 0.7}, nil, profileTable(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.CowID != "CowA" || !resp.Identified || resp.Confidence != 0.7 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Location != nil {
		t.Fatalf("expected no location, got %+v", resp.Location)
	}
	if resp.Husbandry == nil || *resp.Husbandry != cowAProfile() {
		t.Fatalf("unexpected husbandry %+v", resp.Husbandry)
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(raw), "location") {
		t.Fatalf("location must be omitted, got %s", raw)
	}
	for _, field := range []string{`"next_vaccination":"2025-08-20"`, `"daily_water_need":{"amount":40,"unit":"Liters/day"}`, `"daily_food_need":{"amount":25,"unit":"kg/day"}`} {
		if !strings.Contains(string(raw), field) {
			t.Fatalf("expected %s in %s", field, raw)
		}
	}
}

func TestMergeWithLocationAtOrigin(t *testing.T) {
	fix := &LocationFix{Latitude: 0, Longitude: 0}
	resp, err := Merge(resolver.Result{Label: "CowA", Confidence: 0.9}, fix, profileTable(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Location == nil || *resp.Location != *fix {
		t.Fatalf("expected location at origin, got %+v", resp.Location)
	}
	raw, _ := json.Marshal(resp)
	if !strings.Contains(string(raw), `"location":{"latitude":0,"longitude":0}`) {
		t.Fatalf("expected explicit origin location, got %s", raw)
	}
	fix.Latitude = 10
	if resp.Location.Latitude != 0 {
		t.Fatal("response must not alias the caller's fix")
	}
}

func TestMergeUnknownProfile(t *testing.T) {
	_, err := Merge(resolver.Result{Label: "CowZ", Confidence: 0.8}, nil, profileTable(t))
	var profileErr *UnknownProfileError
	if !errors.As(err, &profileErr) {
		t.Fatalf("expected UnknownProfileError, got %v", err)
	}
	if profileErr.Label != "CowZ" {
		t.Fatalf("unexpected label %s", profileErr.Label)
	}
	if KindOf(err) != KindUnknownProfile {
		t.Fatalf("unexpected kind %s", KindOf(err))
	}
}

func TestMergeLowConfidenceSkipsProfile(t *testing.T) {
	resp, err := Merge(resolver.Result{Label: "CowZ", Confidence: 0.3, LowConfidence: true}, &LocationFix{Latitude: -6.8, Longitude: 39.28}, profileTable(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Identified || resp.CowID != Unidentified || resp.Husbandry != nil {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Location == nil {
		t.Fatal("location should still be reported")
	}
}

func TestMergeRejectsInvalidLocation(t *testing.T) {
	fixes := []LocationFix{
		{Latitude: 91, Longitude: 0},
		{Latitude: 0, Longitude: -180.5},
		{Latitude: math.NaN(), Longitude: 0},
	}
	for _, fix := range fixes {
		fix := fix
		_, err := Merge(resolver.Result{Label: "CowA", Confidence: 0.9}, &fix, profileTable(t))
		if !errors.Is(err, ErrInvalidLocation) {
			t.Fatalf("fix %+v: expected ErrInvalidLocation, got %v", fix, err)
		}
	}
	edge := LocationFix{Latitude: -90, Longitude: 180}
	if err := edge.Validate(); err != nil {
		t.Fatalf("edge coordinates must be valid: %v", err)
	}
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{&normalizer.DecodeError{Err: errors.New("x")}, KindDecode},
		{&normalizer.UnsupportedFormatError{Reason: "x"}, KindUnsupportedFormat},
		{fmt.Errorf("wrap: %w", ErrInvalidLocation), KindInvalidLocation},
		{&classifier.ShapeMismatchError{Tensor: "input"}, KindShapeMismatch},
		{&classifier.ModelUnavailableError{Err: errors.New("x")}, KindModelUnavailable},
		{classifier.ErrInvalidScores, KindInvalidScores},
		{resolver.ErrEmptyDistribution, KindEmptyDistribution},
		{logging.NewOperationError("merge", "req", &UnknownProfileError{Label: "CowA"}), KindUnknownProfile},
		{context.DeadlineExceeded, KindCanceled},
		{errors.New("other"), KindInternal},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.want {
			t.Errorf("KindOf(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
	if !KindDecode.ClientError() || KindModelUnavailable.ClientError() {
		t.Fatal("unexpected client error classification")
	}
}
