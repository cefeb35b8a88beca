package primitives

import "testing"

func TestExampleInputsAndLabels(t *testing.T) {
	ex := NewExample(map[string]interface{}{
		"question": "2+2?",
		"answer":   "4",
	}, "question")

	inputs := ex.Inputs()
	if len(inputs) != 1 || inputs["question"] != "2+2?" {
		t.Errorf("got inputs %v, want {question: 2+2?}", inputs)
	}

	labels := ex.Labels()
	if len(labels) != 1 || labels["answer"] != "4" {
		t.Errorf("got labels %v, want {answer: 4}", labels)
	}
}

func TestExampleWithPreservesInputKeys(t *testing.T) {
	ex := NewExample(map[string]interface{}{"q": "a"}, "q")
	extended := ex.With(map[string]interface{}{"answer": "b"})

	if len(extended.Inputs()) != 1 || extended.Inputs()["q"] != "a" {
		t.Errorf("input keys not preserved after With: %v", extended.Inputs())
	}
	if extended.Labels()["answer"] != "b" {
		t.Errorf("merged field missing: %v", extended.Labels())
	}
	if _, ok := ex.Values["answer"]; ok {
		t.Error("With mutated the original example")
	}
}

func TestNewDemoTruncatesLongStringFields(t *testing.T) {
	long := make([]byte, 10)
	for i := range long {
		long[i] = 'a'
	}

	demo := NewDemo(map[string]interface{}{
		"question": string(long),
		"count":    3,
	}, []string{"question"}, 5)

	if got := demo.Values["question"].(string); len(got) != 5 {
		t.Errorf("got truncated length %d, want 5", len(got))
	}
	if demo.Values["count"] != 3 {
		t.Errorf("non-string field was altered: %v", demo.Values["count"])
	}
}

func TestNewDemoDefaultMaxFieldBytes(t *testing.T) {
	demo := NewDemo(map[string]interface{}{"q": "short"}, []string{"q"}, 0)
	if demo.Values["q"] != "short" {
		t.Errorf("short field should be untouched under default cap: %v", demo.Values["q"])
	}
}

func TestPredictionGet(t *testing.T) {
	p := NewPrediction(map[string]interface{}{"answer": "4"})
	v, ok := p.Get("answer")
	if !ok || v != "4" {
		t.Errorf("Get(answer) = %v, %v; want 4, true", v, ok)
	}
	if _, ok := p.Get("missing"); ok {
		t.Error("Get(missing) should report not-found")
	}
}
