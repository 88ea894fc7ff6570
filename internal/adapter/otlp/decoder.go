package otlp

import (
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"

	"github.com/loghorn/loghorn/internal/domain"
)

// IDGenerator hands out process-unique record ids. The counter is seeded
// with the process start time in nanoseconds so ids stay distinct across
// restarts within the store's ordering key.
type IDGenerator struct {
	next atomic.Uint64
}

// NewIDGenerator creates a seeded IDGenerator.
func NewIDGenerator() *IDGenerator {
	g := &IDGenerator{}
	g.next.Store(uint64(time.Now().UnixNano()))
	return g
}

// Next returns the next record id.
func (g *IDGenerator) Next() uint64 {
	return g.next.Add(1)
}

// Decoder converts wire-format export requests into the pipeline's internal
// records. It is stateless apart from the id counter and performs no I/O;
// missing optional fields are defaulted, never rejected.
type Decoder struct {
	ids *IDGenerator
	now func() time.Time
}

// NewDecoder creates a Decoder using the wall clock for zero timestamps.
func NewDecoder(ids *IDGenerator) *Decoder {
	return &Decoder{ids: ids, now: time.Now}
}

// Decode flattens one export request into records. Resource attributes are
// extracted once per resource group and merged into every record produced
// under it.
func (d *Decoder) Decode(req *collogspb.ExportLogsServiceRequest) []domain.LogRecord {
	var records []domain.LogRecord

	for _, rl := range req.GetResourceLogs() {
		resourceAttrs := flattenAttributes(rl.GetResource().GetAttributes())
		key := ResolvePartition(resourceAttrs)

		for _, sl := range rl.GetScopeLogs() {
			for _, lr := range sl.GetLogRecords() {
				records = append(records, d.decodeRecord(lr, key, resourceAttrs))
			}
		}
	}
	return records
}

func (d *Decoder) decodeRecord(lr *logspb.LogRecord, key domain.PartitionKey, resourceAttrs map[string]string) domain.LogRecord {
	timestampMs := lr.GetTimeUnixNano() / uint64(time.Millisecond)
	if timestampMs == 0 {
		timestampMs = uint64(d.now().UnixMilli())
	}

	severityText, severityNumber := normalizeSeverity(int32(lr.GetSeverityNumber()))
	logAttrs := flattenAttributes(lr.GetAttributes())

	return domain.LogRecord{
		ID:                 d.ids.Next(),
		TenantID:           key.TenantID,
		SourceID:           key.SourceID,
		TimestampMs:        timestampMs,
		SeverityText:       severityText,
		SeverityNumber:     severityNumber,
		Body:               bodyString(lr.GetBody()),
		ResourceAttributes: resourceAttrs,
		LogAttributes:      logAttrs,
		TraceID:            hexOrEmpty(lr.GetTraceId()),
		SpanID:             hexOrEmpty(lr.GetSpanId()),
		Endpoint:           firstAttr(logAttrs, resourceAttrs, endpointAttrKeys),
		ServiceName:        resourceAttrs[attrServiceName],
		ServiceVersion:     resourceAttrs[attrServiceVersion],
	}
}

// bodyString extracts the log body: a string payload verbatim, a byte
// payload lossily decoded as UTF-8, anything else coerced like an attribute
// value. Never fails.
func bodyString(body *commonpb.AnyValue) string {
	switch v := body.GetValue().(type) {
	case *commonpb.AnyValue_StringValue:
		return v.StringValue
	case *commonpb.AnyValue_BytesValue:
		return strings.ToValidUTF8(string(v.BytesValue), "�")
	case nil:
		return ""
	default:
		return anyValueString(body)
	}
}

// flattenAttributes coerces typed key-value pairs into a plain string map.
// Duplicate keys keep the last value. The result is never nil.
func flattenAttributes(kvs []*commonpb.KeyValue) map[string]string {
	attrs := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		if kv.GetKey() == "" {
			continue
		}
		attrs[kv.GetKey()] = anyValueString(kv.GetValue())
	}
	return attrs
}

func anyValueString(av *commonpb.AnyValue) string {
	switch v := av.GetValue().(type) {
	case *commonpb.AnyValue_StringValue:
		return v.StringValue
	case *commonpb.AnyValue_IntValue:
		return strconv.FormatInt(v.IntValue, 10)
	case *commonpb.AnyValue_DoubleValue:
		return strconv.FormatFloat(v.DoubleValue, 'g', -1, 64)
	case *commonpb.AnyValue_BoolValue:
		return strconv.FormatBool(v.BoolValue)
	case *commonpb.AnyValue_BytesValue:
		return base64.StdEncoding.EncodeToString(v.BytesValue)
	default:
		return ""
	}
}

func hexOrEmpty(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return hex.EncodeToString(b)
}

// firstAttr returns the value of the first preference-list key present in
// the record attributes, falling back to the resource attributes.
func firstAttr(logAttrs, resourceAttrs map[string]string, keys []string) string {
	for _, k := range keys {
		if v, ok := logAttrs[k]; ok && v != "" {
			return v
		}
		if v, ok := resourceAttrs[k]; ok && v != "" {
			return v
		}
	}
	return ""
}
