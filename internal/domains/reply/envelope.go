package reply

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"otme/go-client/internal/domains/contracts"
	"otme/go-client/pkg/models"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	StatusAcknowledgement = "acknowledgement"
	StatusRejection       = "rejection"

	envelopeType      = "reply"
	envelopeSchemaURL = "https://otme.schemas.local/reply/envelope.schema.json"
)

const envelopeSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type", "command", "notary_id", "nym_id", "success"],
  "properties": {
    "type": {"const": "reply"},
    "command": {"type": "string", "minLength": 1},
    "request_num": {"type": "integer", "minimum": 0},
    "request_id": {"type": "string"},
    "notary_id": {"type": "string"},
    "nym_id": {"type": "string"},
    "success": {"type": "boolean"},
    "payload": {"type": "string"},
    "ledger": {
      "type": "object",
      "required": ["transactions"],
      "properties": {
        "account_id": {"type": "string"},
        "transactions": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["type", "items"],
            "properties": {
              "type": {"type": "string", "minLength": 1},
              "number": {"type": "integer"},
              "success": {"type": "boolean"},
              "items": {
                "type": "array",
                "items": {
                  "type": "object",
                  "required": ["type", "status"],
                  "properties": {
                    "type": {"type": "string", "minLength": 1},
                    "status": {"enum": ["acknowledgement", "rejection"]}
                  }
                }
              }
            }
          }
        }
      }
    }
  }
}`

var envelopeSchema = mustCompileEnvelopeSchema()

func mustCompileEnvelopeSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(envelopeSchemaURL, strings.NewReader(envelopeSchemaJSON)); err != nil {
		panic(fmt.Sprintf("reply envelope schema load failed: %v", err))
	}
	return c.MustCompile(envelopeSchemaURL)
}

// Envelope is the decoded reply document.
type Envelope struct {
	Type          string  `json:"type"`
	Command       string  `json:"command"`
	RequestNumber int64   `json:"request_num"`
	RequestID     string  `json:"request_id,omitempty"`
	NotaryID      string  `json:"notary_id"`
	NymID         string  `json:"nym_id"`
	Success       bool    `json:"success"`
	Payload       string  `json:"payload,omitempty"`
	Ledger        *Ledger `json:"ledger,omitempty"`
}

type Ledger struct {
	AccountID    string        `json:"account_id,omitempty"`
	Transactions []Transaction `json:"transactions"`
}

type Transaction struct {
	Type    string `json:"type"`
	Number  int64  `json:"number,omitempty"`
	Success *bool  `json:"success,omitempty"`
	Items   []Item `json:"items"`
}

type Item struct {
	Type   string `json:"type"`
	Status string `json:"status"`
}

func (l *Ledger) transaction(txType string) (Transaction, bool) {
	if l == nil {
		return Transaction{}, false
	}
	for _, tx := range l.Transactions {
		if tx.Type == txType {
			return tx, true
		}
	}
	return Transaction{}, false
}

func (t Transaction) item(itemType string) (Item, bool) {
	for _, it := range t.Items {
		if it.Type == itemType {
			return it, true
		}
	}
	return Item{}, false
}

func itemStatus(it Item, found bool) models.TierStatus {
	if !found {
		return models.TierAbsent
	}
	if it.Status == StatusAcknowledgement {
		return models.TierSucceeded
	}
	return models.TierFailed
}

// Decode turns a raw reply into an Envelope. An empty payload or a document
// that is not a reply envelope yields a *contracts.ParseError. A well-formed
// reply reporting failure is not an error.
func Decode(raw models.RawReply) (Envelope, error) {
	if raw.IsEmpty() {
		return Envelope{}, contracts.NewParseError("empty", contracts.ErrEmptyReply)
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return Envelope{}, contracts.NewParseError("malformed", err)
	}
	if err := envelopeSchema.Validate(doc); err != nil {
		return Envelope{}, contracts.NewParseError("invalid_envelope", err)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, contracts.NewParseError("malformed", err)
	}
	if env.Type != envelopeType {
		return Envelope{}, contracts.NewParseError("invalid_envelope", fmt.Errorf("unexpected type %q", env.Type))
	}
	return env, nil
}

// Parse decodes raw and locates the tier statuses for operation. The
// returned reply always satisfies models.GateTiers.
func Parse(operation string, raw models.RawReply) (models.ParsedReply, error) {
	return DefaultShapes().Parse(operation, raw)
}

func baseParsed(operation string, env Envelope) models.ParsedReply {
	parsed := models.ParsedReply{
		Operation:     operation,
		Command:       env.Command,
		RequestNumber: env.RequestNumber,
		RequestID:     env.RequestID,
		NotaryID:      env.NotaryID,
		NymID:         env.NymID,
		Payload:       env.Payload,
		Message:       models.TierFailed,
	}
	if env.Ledger != nil {
		parsed.AccountID = env.Ledger.AccountID
	}
	if env.Success {
		parsed.Message = models.TierSucceeded
	}
	return parsed
}
