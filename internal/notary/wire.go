package notary

import "otme/go-client/pkg/models"

const (
	RequestPath = "/v1/request"

	RejectionRequestNumber = "request_number_mismatch"
	RejectionUnavailable   = "unavailable"
)

// WireRequest is the JSON body posted to a notary.
type WireRequest struct {
	NotaryID      string            `json:"notary_id"`
	NymID         string            `json:"nym_id"`
	AccountID     string            `json:"account_id,omitempty"`
	AssetID       string            `json:"asset_id,omitempty"`
	Operation     string            `json:"operation"`
	Params        map[string]string `json:"params,omitempty"`
	RequestNumber int64             `json:"request_num"`
	RequestID     string            `json:"request_id"`
}

// WireRejection is returned with a non-200 status when the notary refuses
// a request before processing it.
type WireRejection struct {
	Error                 string `json:"error"`
	ExpectedRequestNumber int64  `json:"expected_request_num,omitempty"`
}

func NewWireRequest(req models.OperationRequest) WireRequest {
	return WireRequest{
		NotaryID:      req.NotaryID(),
		NymID:         req.NymID(),
		AccountID:     req.AccountID(),
		AssetID:       req.AssetID(),
		Operation:     req.Operation(),
		Params:        req.Params(),
		RequestNumber: req.RequestNumber(),
		RequestID:     req.RequestID(),
	}
}

// OperationRequest rebuilds the request on the receiving side.
func (w WireRequest) OperationRequest() models.OperationRequest {
	return models.NewOperationRequest(models.OperationRequestInput{
		NotaryID:      w.NotaryID,
		NymID:         w.NymID,
		AccountID:     w.AccountID,
		AssetID:       w.AssetID,
		Operation:     w.Operation,
		Params:        w.Params,
		RequestNumber: w.RequestNumber,
		RequestID:     w.RequestID,
	})
}
