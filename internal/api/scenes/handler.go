// Package scenes exposes the stage operations over HTTP, as an RPC envelope
// on POST /rpc, and over the websocket endpoint.
package scenes

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/Vasu1712/scenyx-stage/internal/stage"
	"github.com/Vasu1712/scenyx-stage/internal/wire"
	"github.com/Vasu1712/scenyx-stage/internal/ws"
)

var logger = loggo.GetLogger("stage.api")

// maxBodySize caps request bodies. A full scene list is well below it.
const maxBodySize = 1 << 20

// SceneHandler holds the dependencies for serving stage requests.
type SceneHandler struct {
	Service *stage.Service // Scene and fixture operations
	Hub     *ws.Hub        // Websocket sessions; nil disables /ws

	ops map[string]operation // Method name -> operation, shared by every transport
}

// NewSceneHandler returns a handler for svc. hub may be nil, in which case
// the websocket endpoint is not registered.
func NewSceneHandler(svc *stage.Service, hub *ws.Hub) *SceneHandler {
	h := &SceneHandler{Service: svc, Hub: hub}
	h.ops = h.operations()
	return h
}

// requestCodec picks the codec for the request body.
func requestCodec(r *http.Request) wire.Codec {
	return wire.ForContentType(r.Header.Get("Content-Type"))
}

// responseCodec honours Accept when it names JSON or protobuf and otherwise
// answers in the codec of the request.
func responseCodec(r *http.Request) wire.Codec {
	for _, accept := range strings.Split(r.Header.Get("Accept"), ",") {
		switch strings.TrimSpace(strings.SplitN(accept, ";", 2)[0]) {
		case wire.ContentTypeJSON:
			return wire.JSON
		case wire.ContentTypeProtobuf, wire.ContentTypeOctetStream:
			return wire.Protobuf
		}
	}
	return requestCodec(r)
}

func writeMessage(w http.ResponseWriter, codec wire.Codec, status int, m wire.Message) {
	body, err := codec.Marshal(m)
	if err != nil {
		logger.Errorf("encoding response: %v", err)
		http.Error(w, "encoding response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", codec.ContentType())
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logger.Debugf("writing response: %v", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, method string, err error) {
	body, status := toWireError(method, err)
	writeMessage(w, responseCodec(r), status, body)
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return nil, errors.Annotatef(wire.ErrDecode, "reading body: %v", err)
	}
	if len(body) > maxBodySize {
		return nil, errors.Annotatef(wire.ErrDecode, "body larger than %d bytes", maxBodySize)
	}
	return body, nil
}

// serve runs the named operation on req and writes the response.
func (h *SceneHandler) serve(w http.ResponseWriter, r *http.Request, method string, req wire.Message) {
	resp, err := h.ops[method].call(r.Context(), req)
	if err != nil {
		writeError(w, r, method, err)
		return
	}
	writeMessage(w, responseCodec(r), http.StatusOK, resp)
}

// Operation returns an http.HandlerFunc that decodes the body as the
// request of method and runs it.
func (h *SceneHandler) Operation(method string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := h.ops[method].newRequest()
		body, err := readBody(r)
		if err == nil {
			err = requestCodec(r).Unmarshal(body, req)
		}
		if err != nil {
			writeError(w, r, method, err)
			return
		}
		h.serve(w, r, method, req)
	}
}

// GetScene handles GET /get-scene/{id}.
func (h *SceneHandler) GetScene(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, r, wire.MethodGetScene, errors.NotValidf("scene id %q", mux.Vars(r)["id"]))
		return
	}
	h.serve(w, r, wire.MethodGetScene, &wire.GetSceneRequest{ID: id})
}

// HandleRPC answers one envelope. Every failure is reported as a
// RESPONSE_ERROR carrying a wire.Error.
func (h *SceneHandler) HandleRPC(ctx context.Context, msg *wire.RpcMessage) *wire.RpcMessage {
	if msg.Type != wire.RpcTypeRequest {
		e, _ := toWireError(msg.Method, errors.NotValidf("rpc type %s", msg.Type))
		return msg.ReplyError(e)
	}
	o, ok := h.ops[msg.Method]
	if !ok {
		logger.Debugf("unknown rpc method %q", msg.Method)
		return msg.ReplyError(&wire.Error{Kind: wire.KindUnknownMethod, Message: "unknown method " + strconv.Quote(msg.Method)})
	}
	req := o.newRequest()
	if err := req.Unmarshal(msg.Body); err != nil {
		e, _ := toWireError(msg.Method, err)
		return msg.ReplyError(e)
	}
	resp, err := o.call(ctx, req)
	if err != nil {
		e, _ := toWireError(msg.Method, err)
		return msg.ReplyError(e)
	}
	return msg.Reply(resp.Marshal())
}

// ServeRPC handles POST /rpc. The envelope travels in the negotiated codec;
// bodies inside it are always protobuf.
func (h *SceneHandler) ServeRPC(w http.ResponseWriter, r *http.Request) {
	var msg wire.RpcMessage
	body, err := readBody(r)
	if err == nil {
		err = requestCodec(r).Unmarshal(body, &msg)
	}
	if err != nil {
		writeError(w, r, "rpc", err)
		return
	}
	writeMessage(w, responseCodec(r), http.StatusOK, h.HandleRPC(r.Context(), &msg))
}

// ServeWS handles GET /ws.
func (h *SceneHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	h.Hub.ServeWS(w, r, h)
}
