package client

import (
	"context"
	"net/url"

	"github.com/tidwall/gjson"

	"github.com/holochain/wind-tunnel-sub001/internal/core"
	"github.com/holochain/wind-tunnel-sub001/internal/instrument"
)

// App methods.
const (
	MethodAppInfo  = "app_info"
	MethodCallZome = "call_zome"
)

// AppClient talks to one installed app. Every call is reported as an
// operation named app_<method>.
type AppClient struct {
	conn     *conn
	appID    string
	reporter core.Reporter
}

// ConnectApp opens the app interface for appID.
func ConnectApp(ctx context.Context, connectionString, appID string, reporter core.Reporter) (*AppClient, error) {
	u := endpoint(connectionString, AppPath) + "?" + url.Values{"app_id": {appID}}.Encode()
	c, err := dial(ctx, u, nil)
	if err != nil {
		return nil, err
	}
	return &AppClient{conn: c, appID: appID, reporter: reporter}, nil
}

type AppInfo struct {
	AppID    string
	AgentKey string
}

func (a *AppClient) AppInfo(ctx context.Context) (AppInfo, error) {
	res, err := a.call(ctx, MethodAppInfo, nil, nil)
	if err != nil {
		return AppInfo{}, err
	}
	return AppInfo{AppID: res.Get("app_id").String(), AgentKey: res.Get("agent_key").String()}, nil
}

// ZomeCall names a function in the app and its payload, which must marshal to JSON.
type ZomeCall struct {
	Zome    string `json:"zome_name"`
	Fn      string `json:"fn_name"`
	Payload any    `json:"payload,omitempty"`
}

// CallZome calls a function of the app and returns its result. The operation
// record carries the zome and function names.
func (a *AppClient) CallZome(ctx context.Context, call ZomeCall) (gjson.Result, error) {
	attrs := core.Attrs("zome_name", call.Zome, "fn_name", call.Fn)
	res, err := a.call(ctx, MethodCallZome, attrs, call)
	if err != nil {
		return gjson.Result{}, err
	}
	return res.Get("result"), nil
}

func (a *AppClient) Close() error {
	return a.conn.close()
}

func (a *AppClient) call(ctx context.Context, method string, attrs core.Attributes, data any) (gjson.Result, error) {
	return instrument.Call(a.reporter, instrument.PrefixApp+method, attrs, func() (gjson.Result, error) {
		return a.conn.request(ctx, method, data)
	})
}
