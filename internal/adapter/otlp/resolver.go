package otlp

import "github.com/loghorn/loghorn/internal/domain"

// Well-known resource attribute keys. Tenant resolution itself happens
// outside the pipeline; by the time records arrive here the tenant id in the
// resource attributes is assumed valid and authorized.
const (
	attrTenantID       = "tenant.id"
	attrSourceID       = "source.id"
	attrServiceName    = "service.name"
	attrServiceVersion = "service.version"
)

// endpointAttrKeys is the preference order for deriving the endpoint field.
var endpointAttrKeys = []string{"http.route", "url.path", "http.target"}

// ResolvePartition derives the partition key from flattened resource
// attributes. Missing identifiers fall back to the sentinel values, so the
// key is always fully populated.
func ResolvePartition(resourceAttrs map[string]string) domain.PartitionKey {
	key := domain.PartitionKey{
		TenantID: resourceAttrs[attrTenantID],
		SourceID: resourceAttrs[attrSourceID],
	}
	if key.TenantID == "" {
		key.TenantID = domain.DefaultTenantID
	}
	if key.SourceID == "" {
		key.SourceID = domain.DefaultSourceID
	}
	return key
}
