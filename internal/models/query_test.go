package models

import "testing"

func TestSearchQueryValidate(t *testing.T) {
	q := &SearchQuery{Query: "deadline"}
	if err := q.Validate(10, 100); err != nil {
		t.Fatal(err)
	}
	if q.Limit != 10 {
		t.Errorf("default limit=%d", q.Limit)
	}

	q = &SearchQuery{Query: "deadline", Limit: 500}
	if err := q.Validate(10, 100); err != nil {
		t.Fatal(err)
	}
	if q.Limit != 100 {
		t.Errorf("capped limit=%d", q.Limit)
	}

	q = &SearchQuery{}
	if err := q.Validate(10, 100); err == nil {
		t.Error("empty query should fail validation")
	}
}

func TestUpsertInputValidate(t *testing.T) {
	in := &UpsertInput{EntityType: "task", EntityID: 1, Text: "x"}
	if err := in.Validate(); err != nil {
		t.Fatal(err)
	}
	if err := (&UpsertInput{EntityID: 1}).Validate(); err == nil {
		t.Error("missing entity_type should fail")
	}
	if err := (&UpsertInput{EntityType: "task"}).Validate(); err == nil {
		t.Error("zero entity_id should fail")
	}
}
