package gpu

import (
	"reflect"
	"testing"
)

func TestTeardownUnwindsInReverse(t *testing.T) {
	var released []string
	td := teardown{name: "test"}
	for _, name := range []string{"instance", "surface", "device", "pool"} {
		td.push(name, func() { released = append(released, name) })
	}

	names := td.unwind()
	exp := []string{"pool", "device", "surface", "instance"}
	if !reflect.DeepEqual(released, exp) {
		t.Fatalf("expected release order %v; got %v", exp, released)
	}
	if !reflect.DeepEqual(names, exp) {
		t.Fatalf("expected reported names %v; got %v", exp, names)
	}
	if td.len() != 0 {
		t.Fatalf("expected empty list after unwind; got %d steps", td.len())
	}

	if names := td.unwind(); len(names) != 0 {
		t.Fatalf("expected second unwind to release nothing; got %v", names)
	}
	if len(released) != len(exp) {
		t.Fatalf("expected no double release; got %v", released)
	}
}

func TestTeardownRebuildCycles(t *testing.T) {
	live := map[string]int{}
	td := teardown{name: "swapchain"}
	build := func() {
		for _, name := range []string{"swapchain", "views", "pipeline"} {
			live[name]++
			td.push(name, func() { live[name]-- })
		}
	}

	for i := 0; i < 3; i++ {
		build()
		td.unwind()
	}
	for name, count := range live {
		if count != 0 {
			t.Fatalf("expected %s to be released after every cycle; %d still live", name, count)
		}
	}
}
