package models

import (
	"sort"
	"strings"
)

// OperationRequest is a single request to a notary. It is built once by the
// dispatcher and never modified afterwards.
type OperationRequest struct {
	notaryID      string
	nymID         string
	accountID     string
	assetID       string
	operation     string
	params        map[string]string
	requestNumber int64
	requestID     string
}

type OperationRequestInput struct {
	NotaryID      string
	NymID         string
	AccountID     string
	AssetID       string
	Operation     string
	Params        map[string]string
	RequestNumber int64
	RequestID     string
}

func NewOperationRequest(in OperationRequestInput) OperationRequest {
	params := make(map[string]string, len(in.Params))
	for k, v := range in.Params {
		params[k] = v
	}
	return OperationRequest{
		notaryID:      strings.TrimSpace(in.NotaryID),
		nymID:         strings.TrimSpace(in.NymID),
		accountID:     strings.TrimSpace(in.AccountID),
		assetID:       strings.TrimSpace(in.AssetID),
		operation:     strings.TrimSpace(in.Operation),
		params:        params,
		requestNumber: in.RequestNumber,
		requestID:     in.RequestID,
	}
}

func (r OperationRequest) NotaryID() string     { return r.notaryID }
func (r OperationRequest) NymID() string        { return r.nymID }
func (r OperationRequest) AccountID() string    { return r.accountID }
func (r OperationRequest) AssetID() string      { return r.assetID }
func (r OperationRequest) Operation() string    { return r.operation }
func (r OperationRequest) RequestNumber() int64 { return r.requestNumber }
func (r OperationRequest) RequestID() string    { return r.requestID }

// Param returns a single operation parameter.
func (r OperationRequest) Param(key string) (string, bool) {
	v, ok := r.params[key]
	return v, ok
}

// Params returns a copy of the operation parameters.
func (r OperationRequest) Params() map[string]string {
	out := make(map[string]string, len(r.params))
	for k, v := range r.params {
		out[k] = v
	}
	return out
}

// ParamKeys returns parameter names in sorted order.
func (r OperationRequest) ParamKeys() []string {
	keys := make([]string, 0, len(r.params))
	for k := range r.params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RawReply is the opaque payload returned by the transport.
type RawReply []byte

// IsEmpty reports the "server never answered" sentinel.
func (r RawReply) IsEmpty() bool {
	return len(strings.TrimSpace(string(r))) == 0
}
