// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-logr/logr"

	"github.com/substrate/playground/pkg/apis/core"
)

// resultEnvelope wraps every successful response body.
type resultEnvelope struct {
	Result any `json:"result"`
}

// errorEnvelope wraps every error response body.
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func writeResult(w http.ResponseWriter, log logr.Logger, result any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resultEnvelope{Result: result}); err != nil {
		log.Error(err, "Failed encoding response")
	}
}

func writeError(w http.ResponseWriter, log logr.Logger, err error) {
	errorType := core.ErrorType(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode(errorType))
	if err := json.NewEncoder(w).Encode(errorEnvelope{Error: errorBody{
		Type:    errorType,
		Message: err.Error(),
	}}); err != nil {
		log.Error(err, "Failed encoding error response")
	}
}

// writeBadRequest reports an undecodable request body.
func writeBadRequest(w http.ResponseWriter, log logr.Logger, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	if err := json.NewEncoder(w).Encode(errorEnvelope{Error: errorBody{
		Type:    "Failure",
		Message: "failed decoding request body: " + err.Error(),
	}}); err != nil {
		log.Error(err, "Failed encoding error response")
	}
}

func statusCode(errorType string) int {
	switch errorType {
	case "Unauthorized", "ResourceNotOwned":
		return http.StatusForbidden
	case "UnknownResource":
		return http.StatusNotFound
	case "SessionIdAlreadyUsed", "ConcurrentSessionsLimitBreached", "RepositoryVersionNotReady":
		return http.StatusConflict
	case "DurationLimitBreached":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
