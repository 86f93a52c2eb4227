package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                          "/",
		"/metrics":                  "/metrics",
		"/v1/missions":              "/v1/missions",
		"/v1/missions/op-anvil":     "/v1/missions/:slug",
		"/v1/missions/op-anvil/slots":              "/v1/missions/:slug/slots",
		"/v1/missions/op-anvil/slots/abc":          "/v1/missions/:slug/slots/:uid",
		"/v1/missions/op-anvil/slots/abc/assign":   "/v1/missions/:slug/slots/:uid/assign",
		"/v1/missions/op-anvil/slotGroups/abc":     "/v1/missions/:slug/slotGroups/:uid",
		"/v1/missions/op-anvil/extra":              "/v1/missions/op-anvil/extra",
		"/v1/communities/tf47/missions":            "/v1/communities/:slug/missions",
		"/v1/communities/tf47/applications/status": "/v1/communities/:slug/applications/status",
		"/v1/communities/tf47/applications/a1":     "/v1/communities/:slug/applications/:uid",
		"/v1/missions?limit=10":                    "/v1/missions",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
