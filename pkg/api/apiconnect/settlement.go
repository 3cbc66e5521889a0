package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/splitcore/pkg/api"
)

// SettlementServiceName is the fully-qualified name of the SettlementService service.
const SettlementServiceName = "splitcore.v1.SettlementService"

// These constants are the fully-qualified names of the RPCs defined in SettlementService.
const (
	SettlementServiceProposeSettlementsProcedure = "/splitcore.v1.SettlementService/ProposeSettlements"
	SettlementServiceRegeneratePlanProcedure     = "/splitcore.v1.SettlementService/RegeneratePlan"
	SettlementServiceListSettlementsProcedure    = "/splitcore.v1.SettlementService/ListSettlements"
	SettlementServiceMarkPaidProcedure           = "/splitcore.v1.SettlementService/MarkPaid"
)

// SettlementServiceHandler is implemented by the server side of SettlementService.
type SettlementServiceHandler interface {
	ProposeSettlements(context.Context, *connect.Request[api.ProposeSettlementsRequest]) (*connect.Response[api.ProposeSettlementsResponse], error)
	RegeneratePlan(context.Context, *connect.Request[api.RegeneratePlanRequest]) (*connect.Response[api.RegeneratePlanResponse], error)
	ListSettlements(context.Context, *connect.Request[api.ListSettlementsRequest]) (*connect.Response[api.ListSettlementsResponse], error)
	MarkPaid(context.Context, *connect.Request[api.MarkPaidRequest]) (*connect.Response[api.MarkPaidResponse], error)
}

// NewSettlementServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewSettlementServiceHandler(svc SettlementServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	routes := map[string]http.Handler{
		SettlementServiceProposeSettlementsProcedure: connect.NewUnaryHandler(SettlementServiceProposeSettlementsProcedure, svc.ProposeSettlements, opts...),
		SettlementServiceRegeneratePlanProcedure:     connect.NewUnaryHandler(SettlementServiceRegeneratePlanProcedure, svc.RegeneratePlan, opts...),
		SettlementServiceListSettlementsProcedure:    connect.NewUnaryHandler(SettlementServiceListSettlementsProcedure, svc.ListSettlements, opts...),
		SettlementServiceMarkPaidProcedure:           connect.NewUnaryHandler(SettlementServiceMarkPaidProcedure, svc.MarkPaid, opts...),
	}
	return "/" + SettlementServiceName + "/", router(routes)
}

// SettlementServiceClient is a client for the splitcore.v1.SettlementService service.
type SettlementServiceClient interface {
	ProposeSettlements(context.Context, *connect.Request[api.ProposeSettlementsRequest]) (*connect.Response[api.ProposeSettlementsResponse], error)
	RegeneratePlan(context.Context, *connect.Request[api.RegeneratePlanRequest]) (*connect.Response[api.RegeneratePlanResponse], error)
	ListSettlements(context.Context, *connect.Request[api.ListSettlementsRequest]) (*connect.Response[api.ListSettlementsResponse], error)
	MarkPaid(context.Context, *connect.Request[api.MarkPaidRequest]) (*connect.Response[api.MarkPaidResponse], error)
}

// NewSettlementServiceClient constructs a client for SettlementService. baseURL is the server
// root, e.g. http://localhost:8080.
func NewSettlementServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) SettlementServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &settlementServiceClient{
		proposeSettlements: connect.NewClient[api.ProposeSettlementsRequest, api.ProposeSettlementsResponse](httpClient, baseURL+SettlementServiceProposeSettlementsProcedure, opts...),
		regeneratePlan:     connect.NewClient[api.RegeneratePlanRequest, api.RegeneratePlanResponse](httpClient, baseURL+SettlementServiceRegeneratePlanProcedure, opts...),
		listSettlements:    connect.NewClient[api.ListSettlementsRequest, api.ListSettlementsResponse](httpClient, baseURL+SettlementServiceListSettlementsProcedure, opts...),
		markPaid:           connect.NewClient[api.MarkPaidRequest, api.MarkPaidResponse](httpClient, baseURL+SettlementServiceMarkPaidProcedure, opts...),
	}
}

type settlementServiceClient struct {
	proposeSettlements *connect.Client[api.ProposeSettlementsRequest, api.ProposeSettlementsResponse]
	regeneratePlan     *connect.Client[api.RegeneratePlanRequest, api.RegeneratePlanResponse]
	listSettlements    *connect.Client[api.ListSettlementsRequest, api.ListSettlementsResponse]
	markPaid           *connect.Client[api.MarkPaidRequest, api.MarkPaidResponse]
}

func (c *settlementServiceClient) ProposeSettlements(ctx context.Context, req *connect.Request[api.ProposeSettlementsRequest]) (*connect.Response[api.ProposeSettlementsResponse], error) {
	return c.proposeSettlements.CallUnary(ctx, req)
}

func (c *settlementServiceClient) RegeneratePlan(ctx context.Context, req *connect.Request[api.RegeneratePlanRequest]) (*connect.Response[api.RegeneratePlanResponse], error) {
	return c.regeneratePlan.CallUnary(ctx, req)
}

func (c *settlementServiceClient) ListSettlements(ctx context.Context, req *connect.Request[api.ListSettlementsRequest]) (*connect.Response[api.ListSettlementsResponse], error) {
	return c.listSettlements.CallUnary(ctx, req)
}

func (c *settlementServiceClient) MarkPaid(ctx context.Context, req *connect.Request[api.MarkPaidRequest]) (*connect.Response[api.MarkPaidResponse], error) {
	return c.markPaid.CallUnary(ctx, req)
}
