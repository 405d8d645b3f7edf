package preview

import (
	"context"
	"testing"
)

func TestGreeter_Greet(t *testing.T) {
	gh := newFakeGitHub()
	g := Greeter{Message: "Thanks for opening this issue!"}

	if !g.Enabled() {
		t.Fatal("Expected greeter with a message to be enabled")
	}

	id, err := g.Greet(context.Background(), gh, "acme", "shop", 7)
	if err != nil {
		t.Fatalf("Greet failed: %v", err)
	}

	comments := gh.comments[7]
	if len(comments) != 1 || comments[0].ID != id {
		t.Fatalf("Expected one greeting comment with id %d, got %+v", id, comments)
	}
	if comments[0].Body != "Thanks for opening this issue!" {
		t.Errorf("Unexpected greeting body %q", comments[0].Body)
	}
}

func TestGreeter_Disabled(t *testing.T) {
	if (Greeter{}).Enabled() {
		t.Error("Expected empty greeting to be disabled")
	}
}
