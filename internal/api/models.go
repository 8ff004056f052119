package api

import (
	"net/http"
)

// ModelObject is one entry of the OpenAI-style model list.
type ModelObject struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

type ModelList struct {
	Object string        `json:"object"`
	Data   []ModelObject `json:"data"`
}

// ModelsHandler lists the single configured model for clients that probe
// /v1/models before transcribing.
func ModelsHandler(model string) http.HandlerFunc {
	list := ModelList{
		Object: "list",
		Data:   []ModelObject{{ID: model, Object: "model", OwnedBy: "whisper-stt"}},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, list)
	}
}
