package dali

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Gateway command names.
const (
	cmdWriteDev       = "writeDev"
	cmdReadDev        = "readDev"
	cmdWriteGroup     = "writeGroup"
	cmdWriteScene     = "writeScene"
	cmdGetDevList     = "getDevList"
	cmdGetGroupList   = "getGroupList"
	cmdGetSceneList   = "getSceneList"
	cmdGetSceneDetail = "getSceneDetail"
	cmdSetBusScan     = "setBusScan"
)

// Report names the gateway emits unsolicited.
const (
	reportDevStatus    = "devStatus"
	reportOnlineStatus = "onlineStatus"
	reportEnergy       = "reportEnergy"
	reportScanProgress = "scanProgress"
)

// envelope is the JSON wrapper on every command and response. Responses echo
// the request's message ID.
type envelope struct {
	Cmd   string          `json:"cmd"`
	MsgID string          `json:"msg_id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// newEnvelope wraps data in a command envelope with a fresh message ID.
func newEnvelope(cmd string, data any) (envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return envelope{}, err
	}
	return envelope{
		Cmd:   cmd,
		MsgID: uuid.NewString(),
		Data:  raw,
	}, nil
}

// writeDevData addresses a device write. The broadcast type code "FFFF" with
// address 0 targets every device on the channel.
type writeDevData struct {
	DevType  string     `json:"devType"`
	Channel  int        `json:"channel"`
	Address  int        `json:"address"`
	Property []Property `json:"property"`
}

// readDevData requests a fresh report of the listed datapoints; an empty
// list reads everything.
type readDevData struct {
	DevType string `json:"devType"`
	Channel int    `json:"channel"`
	Address int    `json:"address"`
	Dpid    []int  `json:"dpid,omitempty"`
}

type writeGroupData struct {
	Channel  int        `json:"channel"`
	GroupID  int        `json:"groupId"`
	Property []Property `json:"property"`
}

type writeSceneData struct {
	Channel int `json:"channel"`
	SceneID int `json:"sceneId"`
}

type sceneDetailData struct {
	Channel int `json:"channel"`
	SceneID int `json:"sceneId"`
}

type busScanData struct {
	Enable bool `json:"enable"`
}

// Response payload shapes.

type devListResponse struct {
	Devices []Device `json:"devices"`
}

type groupListResponse struct {
	Groups []Group `json:"groups"`
}

type sceneListResponse struct {
	Scenes []Scene `json:"scenes"`
}

// SceneDetail is a scene with the per-device levels it restores.
type SceneDetail struct {
	Scene
	Property []Property `json:"property"`
}

// Report payload shapes.

type devStatusReport struct {
	DevID    string     `json:"devId"`
	Property []Property `json:"property"`
}

type onlineStatusReport struct {
	Devices []struct {
		DevID  string `json:"devId"`
		Online bool   `json:"status"`
	} `json:"devices"`
}

type energyReport struct {
	DevID string `json:"devId"`

	// Energy is cumulative consumption in watt hours.
	Energy float64 `json:"energy"`
}
