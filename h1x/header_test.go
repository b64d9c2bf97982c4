package h1x

import (
	"reflect"
	"testing"
)

func TestHeaderCaseInsensitiveLookup(t *testing.T) {
	var h Header
	h.Add("Content-Type", "text/plain")
	h.Add("x-token", "a")
	h.Add("X-Token", "b")

	if got := h.Get("content-type"); got != "text/plain" {
		t.Fatalf("Get: %q", got)
	}
	if !h.Has("X-TOKEN") {
		t.Fatal("Has failed")
	}
	if got := h.Values("x-token"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("Values: %v", got)
	}
}

func TestHeaderPreservesOrder(t *testing.T) {
	var h Header
	h.Add("b", "1")
	h.Add("a", "2")
	h.Add("b", "3")

	want := []Field{{"b", "1"}, {"a", "2"}, {"b", "3"}}
	if !reflect.DeepEqual(h.Fields(), want) {
		t.Fatalf("Fields: %v", h.Fields())
	}
}

func TestHeaderSetReplacesInPlace(t *testing.T) {
	var h Header
	h.Add("a", "1")
	h.Add("b", "2")
	h.Add("A", "3")
	h.Set("a", "9")

	want := []Field{{"a", "9"}, {"b", "2"}}
	if !reflect.DeepEqual(h.Fields(), want) {
		t.Fatalf("after Set: %v", h.Fields())
	}

	h.Set("c", "new")
	if h.Get("c") != "new" || h.Len() != 3 {
		t.Fatalf("Set-append: %v", h.Fields())
	}
}

func TestHeaderDel(t *testing.T) {
	var h Header
	h.Add("a", "1")
	h.Add("A", "2")
	h.Add("b", "3")
	h.Del("a")
	if h.Has("a") || h.Len() != 1 {
		t.Fatalf("after Del: %v", h.Fields())
	}
}

func TestValueListContains(t *testing.T) {
	var h Header
	h.Add("Connection", "keep-alive, Close")
	h.Add("Transfer-Encoding", "gzip")
	h.Add("Transfer-Encoding", "chunked")

	if !h.valueListContains("connection", "close") {
		t.Fatal("comma list not matched")
	}
	if !h.valueListContains("Transfer-Encoding", "chunked") {
		t.Fatal("duplicate field not matched")
	}
	if h.valueListContains("Connection", "upgrade") {
		t.Fatal("false positive")
	}
}
