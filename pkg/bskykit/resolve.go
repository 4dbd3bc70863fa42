package bskykit

import (
	"context"
	"fmt"
	"strings"

	"github.com/bluesky-social/indigo/atproto/identity"
	"github.com/bluesky-social/indigo/atproto/syntax"
)

// ResolveInstanceURL looks up the PDS that hosts identifier and returns its
// XRPC base, suitable for NewClient or SetInstanceURL.
func ResolveInstanceURL(
	ctx context.Context,
	dir identity.Directory,
	identifier string,
) (string, error) {
	atid, err := syntax.ParseAtIdentifier(identifier)
	if err != nil {
		return "", newError(KindInvalidInput, fmt.Sprintf("invalid identifier %q", identifier), err)
	}
	id, err := dir.Lookup(ctx, *atid)
	if err != nil {
		return "", newError(KindNetwork, "failed to resolve identity", err)
	}
	pds := id.GetServiceEndpoint("atproto_pds")
	if pds == "" {
		return "", newError(KindInvalidResponse, "identity has no pds endpoint", nil)
	}
	instanceURL := strings.TrimSuffix(pds, "/") + "/xrpc"
	if _, err := parseInstanceURL(instanceURL); err != nil {
		return "", newError(KindInvalidResponse, "identity has an invalid pds endpoint", err)
	}
	return instanceURL, nil
}
