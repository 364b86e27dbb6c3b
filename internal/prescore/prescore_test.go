package prescore

import "testing"

func TestKeywords(t *testing.T) {
	kw := Keywords("Senior Go developer with Kubernetes, node.js and C++. The team ships fast.")

	for _, want := range []string{"senior", "developer", "kubernetes", "node.js", "c++", "ships", "fast"} {
		if !kw[want] {
			t.Fatalf("expected keyword %q in %v", want, kw)
		}
	}

	for _, unwanted := range []string{"the", "and", "with", "team", "go"} {
		if kw[unwanted] {
			t.Fatalf("did not expect %q in keyword set", unwanted)
		}
	}
}

func TestScore(t *testing.T) {
	resume := Keywords("golang kubernetes postgres grafana")
	identical := Score(resume, "golang kubernetes postgres grafana")

	if identical != 100 {
		t.Fatalf("identical keyword sets must score 100, got %v", identical)
	}

	partial := Score(resume, "golang kubernetes terraform ansible")
	if partial <= 0 || partial >= identical {
		t.Fatalf("partial overlap must score between 0 and 100, got %v", partial)
	}

	if got := Score(resume, ""); got != 0 {
		t.Fatalf("empty job text must score 0, got %v", got)
	}
	if got := Score(nil, "golang"); got != 0 {
		t.Fatalf("empty resume keywords must score 0, got %v", got)
	}
}
