package apiconnect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"connectrpc.com/connect"

	"github.com/mmynk/splitcore/pkg/api"
)

func TestCodec(t *testing.T) {
	var c Codec
	if c.Name() != "json" {
		t.Errorf("Name() = %q, want json", c.Name())
	}

	data, err := c.Marshal(&api.Money{Units: 1250, Currency: "USD"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"units":1250,"currency":"USD"}` {
		t.Errorf("Marshal = %s", data)
	}

	var empty api.ListGroupsRequest
	if err := c.Unmarshal(nil, &empty); err != nil {
		t.Errorf("empty body should decode to the zero message: %v", err)
	}

	var req api.GetGroupRequest
	if err := c.Unmarshal([]byte(`{"group_id":"g1","typo":1}`), &req); err == nil {
		t.Error("expected unknown fields to be rejected")
	}
}

// stubGroups answers GetGroup and leaves everything else unimplemented.
type stubGroups struct{ GroupServiceHandler }

func (stubGroups) GetGroup(_ context.Context, req *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error) {
	return connect.NewResponse(&api.GetGroupResponse{Group: api.Group{ID: req.Msg.GroupID, Name: "Trip"}}), nil
}

func TestHandlerAndClient(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle(NewGroupServiceHandler(stubGroups{}))
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewGroupServiceClient(http.DefaultClient, server.URL+"/")
	resp, err := client.GetGroup(context.Background(), connect.NewRequest(&api.GetGroupRequest{GroupID: "g1"}))
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if resp.Msg.Group.ID != "g1" || resp.Msg.Group.Name != "Trip" {
		t.Errorf("unexpected group: %+v", resp.Msg.Group)
	}

	// Plain JSON over HTTP works too.
	httpResp, err := http.Post(server.URL+GroupServiceGetGroupProcedure, "application/json", strings.NewReader(`{"group_id":"g2"}`))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK {
		t.Errorf("status: expected 200, got %d", httpResp.StatusCode)
	}

	unknown, err := http.Post(server.URL+"/"+GroupServiceName+"/Nope", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer unknown.Body.Close()
	if unknown.StatusCode != http.StatusNotFound {
		t.Errorf("unknown procedure: expected 404, got %d", unknown.StatusCode)
	}
}
