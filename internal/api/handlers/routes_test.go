package handlers

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
)

// Fiber matches routes in registration order, so the literal perm-sync path
// has to be registered before the parameterized :id routes or a sync request
// would be captured as an update on a file named "perm-sync".
func TestPermSyncRoutesPrecedeIDRoutes(t *testing.T) {
	app := fiber.New()
	NewFileHandler(nil, nil, 0).RegisterRoutes(app)
	NewTagHandler(nil, nil).RegisterRoutes(app)

	cases := []struct {
		name     string
		syncPath string
		idPath   string
	}{
		{"files", "/protected/storage/files/perm-sync", "/protected/storage/files/:id"},
		{"tags", "/protected/storage/tags/perm-sync", "/protected/storage/tags/:id"},
	}

	routes := app.GetRoutes()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			syncIdx, idIdx := -1, -1
			for i, route := range routes {
				if route.Method != fiber.MethodPut {
					continue
				}
				switch route.Path {
				case tc.syncPath:
					syncIdx = i
				case tc.idPath:
					idIdx = i
				}
			}
			if syncIdx == -1 || idIdx == -1 {
				t.Fatalf("missing PUT routes: sync=%d id=%d", syncIdx, idIdx)
			}
			if syncIdx > idIdx {
				t.Errorf("%s registered after %s, sync requests would match the id route", tc.syncPath, tc.idPath)
			}
		})
	}
}

func TestPermSyncDispatch(t *testing.T) {
	app := fiber.New()
	NewFileHandler(nil, nil, 0).RegisterRoutes(app)

	// A syntactically valid body without a userId must be rejected by the
	// sync handler itself; the id route would try to update a file instead.
	req := httptest.NewRequest(fiber.MethodPut, "/protected/storage/files/perm-sync", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "admin-1")
	req.Header.Set("X-User-Permissions", "admin")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("expected 400 from the sync handler, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Invalid request body") {
		t.Errorf("unexpected response body: %s", body)
	}
}
