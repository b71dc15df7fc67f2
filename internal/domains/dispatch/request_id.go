package dispatch

import (
	"strconv"
	"strings"

	"otme/go-client/pkg/models"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

const fieldSep = "\x1f"

func buildRequest(call Call, number int64) models.OperationRequest {
	in := models.OperationRequestInput{
		NotaryID:      call.NotaryID,
		NymID:         call.NymID,
		AccountID:     call.AccountID,
		AssetID:       call.AssetID,
		Operation:     call.Operation,
		Params:        call.Params,
		RequestNumber: number,
	}
	in.RequestID = RequestID(models.NewOperationRequest(in))
	return models.NewOperationRequest(in)
}

// RequestID is base58(blake2b-256) over the canonical form of req. Two
// requests differing in any field, including the request number, get
// different ids.
func RequestID(req models.OperationRequest) string {
	var b strings.Builder
	for _, f := range []string{
		req.NotaryID(),
		req.NymID(),
		req.AccountID(),
		req.AssetID(),
		req.Operation(),
		strconv.FormatInt(req.RequestNumber(), 10),
	} {
		b.WriteString(f)
		b.WriteString(fieldSep)
	}
	for _, k := range req.ParamKeys() {
		v, _ := req.Param(k)
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
		b.WriteString(fieldSep)
	}
	sum := blake2b.Sum256([]byte(b.String()))
	return base58.Encode(sum[:])
}
