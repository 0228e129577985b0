package dreo

import "encoding/json"

// Device is one appliance as returned by the device list endpoint.
// ControlsConf carries the server-declared capability descriptor; it is
// passed through raw and parsed by the capability package.
type Device struct {
	SN           string          `json:"deviceSn"`
	Name         string          `json:"deviceName"`
	Model        string          `json:"model"`
	DeviceType   string          `json:"deviceType"`
	ModuleFW     string          `json:"moduleFirmwareVersion"`
	MCUFW        string          `json:"mcuFirmwareVersion"`
	ProductID    string          `json:"productId"`
	ControlsConf json.RawMessage `json:"controlsConf,omitempty"`
	// State is sometimes included inline in the device list; when present
	// it seeds the coordinator without an extra status call.
	State map[string]any `json:"state,omitempty"`
}

// apiResponse is the envelope every open-api endpoint uses.
// Code 0 means success; anything else is a business error with Msg set.
type apiResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type loginData struct {
	AccessToken string `json:"access_token"`
}

type deviceListData struct {
	List        []Device `json:"list"`
	TotalNum    int      `json:"totalNum"`
	CurrentPage int      `json:"currentPage"`
}

type statusData struct {
	Mixed map[string]any `json:"mixed"`
}

// Session is the persisted login state. Region comes from the token suffix
// and selects the app-api/WebSocket hosts.
type Session struct {
	AccessToken string `json:"access_token"`
	AppToken    string `json:"app_token,omitempty"`
	Region      string `json:"region"`
}
