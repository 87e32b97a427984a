package types

import "testing"

func TestParseAnalysisResult(t *testing.T) {
	raw := "```json\n{\n  // the face\n  \"primary\": {\"label\": \"face\", \"confidence\": 0.9, \"box\": {\"x\": 0.1, \"y\": 0.2, \"w\": 0.3, \"h\": 0.4},},\n  \"description\": \"one person\",\n}\n```"

	r := ParseAnalysisResult(raw)
	if r.Primary.Label != "face" {
		t.Fatalf("Expected label face, got %q", r.Primary.Label)
	}
	if r.Primary.Confidence != 0.9 {
		t.Errorf("Expected confidence 0.9, got %f", r.Primary.Confidence)
	}
	want := Box{X: 0.1, Y: 0.2, W: 0.3, H: 0.4}
	if r.Primary.Box != want {
		t.Errorf("Expected box %+v, got %+v", want, r.Primary.Box)
	}
}

func TestParseAnalysisResultSurroundingText(t *testing.T) {
	raw := `Sure! Here is the answer: {"primary": {"label": "face", "confidence": 0.5, "box": {"x": 0, "y": 0, "w": 1, "h": 1}}} hope this helps`

	if r := ParseAnalysisResult(raw); r.Primary.Label != "face" {
		t.Errorf("Expected label face, got %q", r.Primary.Label)
	}
}

func TestParseAnalysisResultFallback(t *testing.T) {
	for _, raw := range []string{"", "I cannot see any image", "{not json at all}"} {
		r := ParseAnalysisResult(raw)
		if r.Primary.Label != "none" || r.Primary.Confidence != 0 {
			t.Errorf("ParseAnalysisResult(%q): expected no-face fallback, got %+v", raw, r.Primary)
		}
	}
}
