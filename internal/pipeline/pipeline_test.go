package pipeline

import (
	"reflect"
	"sort"
	"testing"

	"github.com/roadcams/conditions-dashboard/internal/model"
)

func classified(name string, level model.SafetyLevel) model.CameraRecord {
	return model.CameraRecord{
		Camera: model.Camera{DisplayName: name, Latitude: 40.5, Longitude: -111.8},
		Status: "ok",
		Classification: &model.Classification{
			Condition:   "clear",
			Confidence:  0.8,
			SafetyLevel: level,
			Timestamp:   "2026-01-10T08:00:00Z",
		},
	}
}

func failed(name string) model.CameraRecord {
	return model.CameraRecord{Camera: model.Camera{DisplayName: name}, Status: model.StatusFailed}
}

func scenarioSnapshot() *model.Snapshot {
	return &model.Snapshot{
		Data: map[string]model.CameraRecord{
			"A": classified("Alta Bypass", model.SafetyLevelHazardous),
			"B": failed("Big Cottonwood"),
			"C": classified("Provo Canyon", model.SafetyLevelSafe),
		},
		Stats: model.Stats{Total: 3, Safe: 1, Hazardous: 1, Failed: 1},
	}
}

func ids(view View) []string {
	result := make([]string, 0, len(view.Cameras))
	for id := range view.Cameras {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}

func TestApplyDefaultCriteriaKeepsEverything(t *testing.T) {
	snapshot := scenarioSnapshot()
	view := Apply(snapshot, model.DefaultFilterCriteria())

	if !reflect.DeepEqual(view.Cameras, snapshot.Data) {
		t.Fatalf("expected full mapping, got %v", ids(view))
	}
	if view.Stats != snapshot.Stats {
		t.Fatalf("Stats = %+v, want %+v", view.Stats, snapshot.Stats)
	}
}

func TestApplyScenarioHazardousHidden(t *testing.T) {
	criteria := model.FilterCriteria{ShowSafe: true, ShowCaution: true, ShowHazardous: false, ShowFailed: true}
	view := Apply(scenarioSnapshot(), criteria)

	if got := ids(view); !reflect.DeepEqual(got, []string{"B", "C"}) {
		t.Fatalf("filtered ids = %v, want [B C]", got)
	}
	want := model.Stats{Total: 2, Safe: 1, Caution: 0, Hazardous: 0, Failed: 1}
	if view.Stats != want {
		t.Fatalf("Stats = %+v, want %+v", view.Stats, want)
	}
}

func TestApplyScenarioSearch(t *testing.T) {
	criteria := model.DefaultFilterCriteria()
	criteria.Search = "a"
	view := Apply(scenarioSnapshot(), criteria)

	// "Alta Bypass" and "Provo Canyon" contain an a; "Big Cottonwood" does not.
	if got := ids(view); !reflect.DeepEqual(got, []string{"A", "C"}) {
		t.Fatalf("filtered ids = %v, want [A C]", got)
	}
	want := model.Stats{Total: 2, Safe: 1, Hazardous: 1}
	if view.Stats != want {
		t.Fatalf("Stats = %+v, want %+v", view.Stats, want)
	}
}

func TestSearchIsCaseInsensitiveSubstring(t *testing.T) {
	record := classified("Parleys Summit", model.SafetyLevelSafe)
	tests := []struct {
		search string
		want   bool
	}{
		{search: "parleys", want: true},
		{search: "SUMMIT", want: true},
		{search: "rley", want: true},
		{search: "parlay", want: false},
		{search: "", want: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.search, func(t *testing.T) {
			criteria := model.DefaultFilterCriteria()
			criteria.Search = tt.search
			if got := Matches(record, criteria); got != tt.want {
				t.Fatalf("Matches(%q) = %v, want %v", tt.search, got, tt.want)
			}
		})
	}
}

func TestHidingSafeRemovesOnlySafeRecords(t *testing.T) {
	snapshot := &model.Snapshot{Data: map[string]model.CameraRecord{
		"s1": classified("One", model.SafetyLevelSafe),
		"s2": classified("Two", model.SafetyLevelSafe),
		"c1": classified("Three", model.SafetyLevelCaution),
		"h1": classified("Four", model.SafetyLevelHazardous),
		"f1": failed("Five"),
	}}
	all := Apply(snapshot, model.DefaultFilterCriteria())

	criteria := model.DefaultFilterCriteria()
	criteria.ShowSafe = false
	view := Apply(snapshot, criteria)

	for id, record := range snapshot.Data {
		_, kept := view.Cameras[id]
		if record.Level() == model.SafetyLevelSafe && kept {
			t.Fatalf("safe record %s still present", id)
		}
		if record.Level() != model.SafetyLevelSafe && !kept {
			t.Fatalf("non-safe record %s removed", id)
		}
	}
	if view.Stats.Safe != 0 {
		t.Fatalf("Stats.Safe = %d, want 0", view.Stats.Safe)
	}
	if view.Stats.Caution != all.Stats.Caution || view.Stats.Hazardous != all.Stats.Hazardous || view.Stats.Failed != all.Stats.Failed {
		t.Fatalf("other categories changed: before %+v after %+v", all.Stats, view.Stats)
	}
}

func TestFailedUnclassifiedRecordFollowsFailedToggle(t *testing.T) {
	record := failed("Sardine Summit")

	onlyFailed := model.FilterCriteria{ShowFailed: true}
	if !Matches(record, onlyFailed) {
		t.Fatalf("expected failed record visible with only showFailed")
	}
	if Matches(record, model.FilterCriteria{}) {
		t.Fatalf("expected failed record hidden with all toggles off")
	}
}

func TestUnknownNotFailedRecordIsNeverVisible(t *testing.T) {
	record := classified("Logan Canyon", model.SafetyLevelUnknown)
	unclassified := model.CameraRecord{Camera: model.Camera{DisplayName: "Daniels"}, Status: "ok"}

	for mask := 0; mask < 16; mask++ {
		criteria := model.FilterCriteria{
			ShowSafe:      mask&1 != 0,
			ShowCaution:   mask&2 != 0,
			ShowHazardous: mask&4 != 0,
			ShowFailed:    mask&8 != 0,
		}
		if Matches(record, criteria) {
			t.Fatalf("unknown record visible under %+v", criteria)
		}
		if Matches(unclassified, criteria) {
			t.Fatalf("unclassified record visible under %+v", criteria)
		}
	}
}

func TestOffEnumLevelIsUnknown(t *testing.T) {
	for _, raw := range []model.SafetyLevel{"Safe", " safe ", "SAFE", "Caution", "HAZARDOUS", ""} {
		t.Run(string(raw), func(t *testing.T) {
			record := classified("Parleys Summit", raw)
			if level := record.Level(); level != model.SafetyLevelUnknown {
				t.Fatalf("Level() = %q, want unknown", level)
			}
			all := model.FilterCriteria{ShowSafe: true, ShowCaution: true, ShowHazardous: true}
			if Matches(record, all) {
				t.Fatalf("record with level %q visible under %+v", raw, all)
			}
			stats := Count(map[string]model.CameraRecord{"x": record})
			if want := (model.Stats{Total: 1}); stats != want {
				t.Fatalf("Count() = %+v, want %+v", stats, want)
			}
		})
	}
}

func TestFailedRecordCountsTowardLevelAndFailed(t *testing.T) {
	record := classified("Soldier Summit", model.SafetyLevelCaution)
	record.Status = model.StatusFailed

	stats := Count(map[string]model.CameraRecord{"x": record})
	want := model.Stats{Total: 1, Caution: 1, Failed: 1}
	if stats != want {
		t.Fatalf("Count() = %+v, want %+v", stats, want)
	}
}

func TestStatsAreRecomputedNotCopied(t *testing.T) {
	snapshot := scenarioSnapshot()
	snapshot.Stats = model.Stats{Total: 99, Safe: 42}

	view := Apply(snapshot, model.DefaultFilterCriteria())
	if view.Stats.Total != 3 || view.Stats.Safe != 1 {
		t.Fatalf("Stats = %+v, expected recomputed counts", view.Stats)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	snapshot := scenarioSnapshot()
	criteria := model.FilterCriteria{Search: "o", ShowSafe: true, ShowFailed: true}

	first := Apply(snapshot, criteria)
	second := Apply(snapshot, criteria)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Apply() not idempotent: %+v vs %+v", first, second)
	}
}

func TestApplyNilSnapshot(t *testing.T) {
	view := Apply(nil, model.DefaultFilterCriteria())
	if view.Cameras == nil || len(view.Cameras) != 0 {
		t.Fatalf("expected empty non-nil cameras, got %#v", view.Cameras)
	}
	if view.Stats != (model.Stats{}) {
		t.Fatalf("expected zero stats, got %+v", view.Stats)
	}

	empty := Apply(&model.Snapshot{}, model.DefaultFilterCriteria())
	if len(empty.Cameras) != 0 || empty.Stats != (model.Stats{}) {
		t.Fatalf("expected empty view for snapshot without data, got %+v", empty)
	}
}
