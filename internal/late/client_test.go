package late

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewClient("test-key", WithBaseURL(srv.URL)), srv
}

func TestListPostsFilterAndDecode(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/posts" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth = %q", got)
		}
		if got := r.URL.Query().Get("status"); got != "scheduled" {
			t.Errorf("status filter = %q", got)
		}
		io.WriteString(w, `{"posts":[
			{"id":"p1","content":"hello","status":"scheduled",
			 "platforms":[{"platform":"x","accountId":"acct-1"}],
			 "scheduledFor":"2026-09-07T09:00:00Z"},
			{"id":"p2","content":"draft","status":"draft","platforms":[]}
		]}`)
	})
	defer srv.Close()

	posts, err := c.ListPosts(context.Background(), PostFilter{Status: "scheduled"})
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 2 {
		t.Fatalf("got %d posts", len(posts))
	}
	p := posts[0]
	if p.ID != "p1" || p.Platform() != "x" {
		t.Fatalf("post = %+v", p)
	}
	want := time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC)
	if p.ScheduledFor == nil || !p.ScheduledFor.Equal(want) {
		t.Fatalf("scheduledFor = %v", p.ScheduledFor)
	}
	if posts[1].ScheduledFor != nil {
		t.Fatalf("draft should have no scheduledFor, got %v", posts[1].ScheduledFor)
	}
}

func TestUpdatePostSendsPatch(t *testing.T) {
	when := time.Date(2026, 9, 7, 15, 0, 0, 0, time.UTC)
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/v1/posts/p1" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body["status"] != "cancelled" {
			t.Errorf("status = %v", body["status"])
		}
		if _, ok := body["scheduledFor"]; !ok {
			t.Error("scheduledFor missing from payload")
		}
		io.WriteString(w, `{"id":"p1","status":"cancelled"}`)
	})
	defer srv.Close()

	post, err := c.UpdatePost(context.Background(), "p1", PostUpdate{ScheduledFor: &when, Status: "cancelled"})
	if err != nil {
		t.Fatal(err)
	}
	if post.ID != "p1" || post.Status != "cancelled" {
		t.Fatalf("post = %+v", post)
	}
}

func TestUpdatePostOmitsEmptyFields(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if strings.Contains(string(raw), "scheduledFor") {
			t.Errorf("payload should omit scheduledFor: %s", raw)
		}
		io.WriteString(w, `{"id":"p1","status":"cancelled"}`)
	})
	defer srv.Close()

	if _, err := c.UpdatePost(context.Background(), "p1", PostUpdate{Status: "cancelled"}); err != nil {
		t.Fatal(err)
	}
}

func TestCreatePost(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/posts" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var req CreatePostRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if len(req.Platforms) != 1 || req.Platforms[0].AccountID != "acct-1" {
			t.Errorf("platforms = %+v", req.Platforms)
		}
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":"p9","status":"scheduled"}`)
	})
	defer srv.Close()

	created, err := c.CreatePost(context.Background(), CreatePostRequest{
		Content:      "hi",
		Platforms:    []PlatformTarget{{Platform: "x", AccountID: "acct-1"}},
		ScheduledFor: time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	if created.ID != "p9" {
		t.Fatalf("created = %+v", created)
	}
}

func TestUploadMediaMultipart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("mp4 bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/media" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatal(err)
		}
		f, header, err := r.FormFile("file")
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		if header.Filename != "clip.mp4" {
			t.Errorf("filename = %q", header.Filename)
		}
		io.WriteString(w, `{"url":"https://cdn.example/clip.mp4","type":"video"}`)
	})
	defer srv.Close()

	media, err := c.UploadMedia(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if media.URL != "https://cdn.example/clip.mp4" {
		t.Fatalf("media = %+v", media)
	}
}

func TestErrorResponsePreservesBody(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":"Daily post limit reached"}`)
	})
	defer srv.Close()

	_, err := c.ListPosts(context.Background(), PostFilter{})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type %T", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d", apiErr.StatusCode)
	}
	if !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "Daily post limit") {
		t.Fatalf("error text = %q", err)
	}
}
