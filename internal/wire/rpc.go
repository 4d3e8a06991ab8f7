package wire

import (
	"encoding/json"

	"github.com/juju/errors"
)

// RpcType tells requests from responses inside an RpcMessage.
type RpcType int32

const (
	RpcTypeUnspecified RpcType = iota
	RpcTypeRequest
	RpcTypeResponse
	RpcTypeResponseError
)

var rpcTypeNames = map[RpcType]string{
	RpcTypeUnspecified:   "RPC_TYPE_UNSPECIFIED",
	RpcTypeRequest:       "RPC_TYPE_REQUEST",
	RpcTypeResponse:      "RPC_TYPE_RESPONSE",
	RpcTypeResponseError: "RPC_TYPE_RESPONSE_ERROR",
}

func (t RpcType) String() string {
	if name, ok := rpcTypeNames[t]; ok {
		return name
	}
	return "RPC_TYPE_UNKNOWN"
}

func (t RpcType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *RpcType) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		var n int32
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		*t = RpcType(n)
		return nil
	}
	for typ, typName := range rpcTypeNames {
		if typName == name {
			*t = typ
			return nil
		}
	}
	return errors.NotValidf("rpc type %q", name)
}

// Method names carried in RpcMessage.Method.
const (
	MethodGetSceneList               = "GetSceneList"
	MethodGetScene                   = "GetScene"
	MethodSetScene                   = "SetScene"
	MethodGetCurrentScene            = "GetCurrentScene"
	MethodSetCurrentScene            = "SetCurrentScene"
	MethodUpdateCurrentScene         = "UpdateCurrentScene"
	MethodGetState                   = "GetState"
	MethodSetFixture                 = "SetFixture"
	MethodCreateScene                = "CreateScene"
	MethodDeleteScene                = "DeleteScene"
	MethodCreateFixture              = "CreateFixture"
	MethodDeleteFixture              = "DeleteFixture"
	MethodAddFixturesToScene         = "AddFixturesToScene"
	MethodRemoveAllFixturesFromScene = "RemoveAllFixturesFromScene"

	// MethodSceneUpdate is only sent to the backend.
	MethodSceneUpdate = "SceneUpdate"
)

// RpcMessage frames one request or response on a socket.
type RpcMessage struct {
	Type   RpcType `json:"type"`
	ID     uint64  `json:"id,omitempty"`
	Method string  `json:"method,omitempty"`
	Body   []byte  `json:"body,omitempty"`
}

func (m *RpcMessage) Marshal() []byte {
	var e encoder
	e.int64(1, int64(m.Type))
	e.uint64(2, m.ID)
	e.string(3, m.Method)
	e.bytes(4, m.Body)
	return e
}

func (m *RpcMessage) Unmarshal(b []byte) error {
	*m = RpcMessage{}
	return eachField(b, func(f field) (err error) {
		switch f.num {
		case 1:
			var t int32
			t, err = f.int32()
			m.Type = RpcType(t)
		case 2:
			m.ID, err = f.uint64()
		case 3:
			m.Method, err = f.string()
		case 4:
			m.Body, err = f.raw()
		}
		return err
	})
}

// Reply builds the response envelope for m carrying body.
func (m *RpcMessage) Reply(body []byte) *RpcMessage {
	return &RpcMessage{Type: RpcTypeResponse, ID: m.ID, Method: m.Method, Body: body}
}

// ReplyError builds the RESPONSE_ERROR envelope for m.
func (m *RpcMessage) ReplyError(e *Error) *RpcMessage {
	return &RpcMessage{Type: RpcTypeResponseError, ID: m.ID, Method: m.Method, Body: e.Marshal()}
}

// SceneUpdate pushes the rendered universe of a scene to the backend.
type SceneUpdate struct {
	SceneID  int64         `json:"sceneId,omitempty"`
	Universe ChannelValues `json:"universe,omitempty"`
}

func (m *SceneUpdate) Marshal() []byte {
	var e encoder
	e.int64(1, m.SceneID)
	e.bytes(2, m.Universe)
	return e
}

func (m *SceneUpdate) Unmarshal(b []byte) error {
	*m = SceneUpdate{}
	return eachField(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.SceneID, err = f.int64()
		case 2:
			m.Universe, err = f.raw()
		}
		return err
	})
}
