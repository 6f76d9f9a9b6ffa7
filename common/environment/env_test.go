package environment_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/bdobrica/pantheon/common/environment"
)

func TestStringOr(t *testing.T) {
	t.Setenv("PANTHEON_TEST_STRING", "elion")
	if got := environment.StringOr("PANTHEON_TEST_STRING", "default"); got != "elion" {
		t.Errorf("expected %q, got %q", "elion", got)
	}
	if got := environment.StringOr("PANTHEON_TEST_STRING_MISSING", "default"); got != "default" {
		t.Errorf("expected %q, got %q", "default", got)
	}
}

func TestFirstOf(t *testing.T) {
	t.Setenv("PANTHEON_TEST_PRIMARY", "")
	t.Setenv("PANTHEON_TEST_ALIAS", "from-alias")
	if got := environment.FirstOf("none", "PANTHEON_TEST_PRIMARY", "PANTHEON_TEST_ALIAS"); got != "from-alias" {
		t.Errorf("expected alias value, got %q", got)
	}

	t.Setenv("PANTHEON_TEST_PRIMARY", "from-primary")
	if got := environment.FirstOf("none", "PANTHEON_TEST_PRIMARY", "PANTHEON_TEST_ALIAS"); got != "from-primary" {
		t.Errorf("expected primary value, got %q", got)
	}

	if got := environment.FirstOf("none", "PANTHEON_TEST_UNSET_A", "PANTHEON_TEST_UNSET_B"); got != "none" {
		t.Errorf("expected default, got %q", got)
	}
}

func TestBoolOr(t *testing.T) {
	t.Setenv("PANTHEON_TEST_BOOL", "true")
	if !environment.BoolOr("PANTHEON_TEST_BOOL", false) {
		t.Error("expected true")
	}
	t.Setenv("PANTHEON_TEST_BOOL", "nope")
	if !environment.BoolOr("PANTHEON_TEST_BOOL", true) {
		t.Error("expected default for unparsable value")
	}
}

func TestIntOr(t *testing.T) {
	t.Setenv("PANTHEON_TEST_INT", " 42 ")
	if got := environment.IntOr("PANTHEON_TEST_INT", 0); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
	t.Setenv("PANTHEON_TEST_INT", "forty-two")
	if got := environment.IntOr("PANTHEON_TEST_INT", 7); got != 7 {
		t.Errorf("expected default 7, got %d", got)
	}
}

func TestFloat64Or(t *testing.T) {
	t.Setenv("PANTHEON_TEST_FLOAT", "0.35")
	if got := environment.Float64Or("PANTHEON_TEST_FLOAT", 0.8); got != 0.35 {
		t.Errorf("expected 0.35, got %v", got)
	}
	t.Setenv("PANTHEON_TEST_FLOAT", "warm")
	if got := environment.Float64Or("PANTHEON_TEST_FLOAT", 0.8); got != 0.8 {
		t.Errorf("expected default 0.8, got %v", got)
	}
}

func TestDurationOr(t *testing.T) {
	t.Setenv("PANTHEON_TEST_DURATION", "15s")
	if got := environment.DurationOr("PANTHEON_TEST_DURATION", time.Minute); got != 15*time.Second {
		t.Errorf("expected 15s, got %v", got)
	}
	if got := environment.DurationOr("PANTHEON_TEST_DURATION_MISSING", time.Minute); got != time.Minute {
		t.Errorf("expected default 1m, got %v", got)
	}
}

func TestStringSliceOr(t *testing.T) {
	t.Setenv("PANTHEON_TEST_SLICE", "elion, nyxa,,suun ")
	want := []string{"elion", "nyxa", "suun"}
	if got := environment.StringSliceOr("PANTHEON_TEST_SLICE", nil); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	t.Setenv("PANTHEON_TEST_SLICE", " , ,")
	def := []string{"vaur"}
	if got := environment.StringSliceOr("PANTHEON_TEST_SLICE", def); !reflect.DeepEqual(got, def) {
		t.Errorf("expected default %v, got %v", def, got)
	}
}
