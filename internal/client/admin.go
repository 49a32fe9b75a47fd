package client

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/holochain/wind-tunnel-sub001/internal/core"
	"github.com/holochain/wind-tunnel-sub001/internal/instrument"
)

// Paths of the two interfaces, relative to the connection string.
const (
	AdminPath = "/admin"
	AppPath   = "/app"
)

// Admin methods.
const (
	MethodVersion             = "version"
	MethodGenerateAgentPubKey = "generate_agent_pub_key"
	MethodInstallApp          = "install_app"
	MethodUninstallApp        = "uninstall_app"
	MethodListApps            = "list_apps"
)

// AdminClient talks to the admin interface. Every call is reported as an
// operation named admin_<method>.
type AdminClient struct {
	conn     *conn
	reporter core.Reporter
}

// ConnectAdmin opens the admin interface of the service at connectionString,
// e.g. ws://localhost:8888.
func ConnectAdmin(ctx context.Context, connectionString string, reporter core.Reporter) (*AdminClient, error) {
	c, err := dial(ctx, endpoint(connectionString, AdminPath), nil)
	if err != nil {
		return nil, err
	}
	return &AdminClient{conn: c, reporter: reporter}, nil
}

// VersionInfo is the service's answer to a version request.
type VersionInfo struct {
	Version string
	// Raw is the full response, suitable for a run summary's build info.
	Raw json.RawMessage
}

func (a *AdminClient) Version(ctx context.Context) (VersionInfo, error) {
	res, err := a.call(ctx, MethodVersion, nil)
	if err != nil {
		return VersionInfo{}, err
	}
	return VersionInfo{Version: res.Get("version").String(), Raw: json.RawMessage(res.Raw)}, nil
}

// GenerateAgentPubKey asks the service for a new agent key.
func (a *AdminClient) GenerateAgentPubKey(ctx context.Context) (string, error) {
	res, err := a.call(ctx, MethodGenerateAgentPubKey, nil)
	if err != nil {
		return "", err
	}
	key := res.Get("agent_key").String()
	if key == "" {
		return "", errors.New("service returned an empty agent key")
	}
	return key, nil
}

// InstallApp installs appID for agentKey.
func (a *AdminClient) InstallApp(ctx context.Context, appID, agentKey string) error {
	_, err := a.call(ctx, MethodInstallApp, map[string]string{"app_id": appID, "agent_key": agentKey})
	return err
}

func (a *AdminClient) UninstallApp(ctx context.Context, appID string) error {
	_, err := a.call(ctx, MethodUninstallApp, map[string]string{"app_id": appID})
	return err
}

// ListApps returns the installed app ids.
func (a *AdminClient) ListApps(ctx context.Context) ([]string, error) {
	res, err := a.call(ctx, MethodListApps, nil)
	if err != nil {
		return nil, err
	}
	var apps []string
	res.Get("apps").ForEach(func(_, v gjson.Result) bool {
		apps = append(apps, v.String())
		return true
	})
	return apps, nil
}

func (a *AdminClient) Close() error {
	return a.conn.close()
}

func (a *AdminClient) call(ctx context.Context, method string, data any) (gjson.Result, error) {
	return instrument.Call(a.reporter, instrument.PrefixAdmin+method, nil, func() (gjson.Result, error) {
		return a.conn.request(ctx, method, data)
	})
}

func endpoint(connectionString, path string) string {
	base := strings.TrimRight(connectionString, "/")
	switch {
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case !strings.Contains(base, "://"):
		base = "ws://" + base
	}
	return base + path
}
