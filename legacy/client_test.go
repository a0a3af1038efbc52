package legacy_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/reelstash/identity/legacy"
)

func TestClientListUsers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/users" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer service-key-123" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if r.URL.Query().Get("page") != "2" || r.URL.Query().Get("per_page") != "10" {
			t.Errorf("unexpected pagination query: %s", r.URL.RawQuery)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"users": []map[string]any{
				{
					"id":    "L1",
					"email": "b@x.com",
					"user_metadata": map[string]any{
						"name":        "Bee User",
						"avatar_url":  "https://example.com/bee.png",
						"provider_id": "g-55",
					},
				},
				{
					"id":    "L2",
					"email": "c@x.com",
				},
			},
		})
	}))
	defer srv.Close()

	client := legacy.NewClient(srv.URL, "service-key-123")
	users, err := client.ListUsers(context.Background(), 2, 10)
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("got %d users, want 2", len(users))
	}

	first := users[0]
	if first.LegacyID != "L1" || first.Email != "b@x.com" {
		t.Errorf("unexpected first user: %+v", first)
	}
	if first.DisplayName != "Bee User" || first.ExternalID != "g-55" || first.AvatarURL != "https://example.com/bee.png" {
		t.Errorf("metadata not mapped: %+v", first)
	}

	second := users[1]
	if second.LegacyID != "L2" || second.DisplayName != "" || second.ExternalID != "" {
		t.Errorf("missing metadata should map to zero values: %+v", second)
	}
}

func TestClientListUsersErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad service key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := legacy.NewClient(srv.URL, "wrong-key")
	if _, err := client.ListUsers(context.Background(), 1, 10); err == nil {
		t.Error("expected an error for a rejected request")
	}
}
