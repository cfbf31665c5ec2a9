package config

import (
	"os"
	"strings"
)

// ArchiveRawPayloads enables archival of each ingested document's raw extracted
// payload to GCS. Disabled by default; requires GCS_BUCKET.
//
// Set via env:
// - ARCHIVE_RAW_PAYLOADS=true
func ArchiveRawPayloads() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("ARCHIVE_RAW_PAYLOADS")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// StrictIngestOrgMatch rejects ingestion when the payload org differs from the
// authenticated org even for platform admins. On by default; turning it off is
// for internal backfill tooling only.
//
// Set via env:
// - STRICT_INGEST_ORG_MATCH=false
func StrictIngestOrgMatch() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STRICT_INGEST_ORG_MATCH")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
