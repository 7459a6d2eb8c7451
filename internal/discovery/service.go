package discovery

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/grantflow-labs/grantflow-backend/internal/pkg/chain"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/chainerr"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/model"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/reject"
	"github.com/grantflow-labs/grantflow-backend/internal/pkg/ss58"
	"github.com/rs/zerolog/log"
)

const bountyNotDiscoverable = "error.discovery.bounty-not-discoverable"

type AccountRef struct {
	Address string `json:"address"`
	Raw     string `json:"raw"`
}

type ControllingMultisig struct {
	Address   string `json:"address"`
	Raw       string `json:"raw"`
	ProxyType string `json:"proxyType"`
}

// BountyStructure is the discovery result linking a treasury bounty to the
// multisig that effectively controls its payouts. Never persisted; committees
// re-run discovery whenever they configure the multisig.
type BountyStructure struct {
	BountyId            uint32               `json:"bountyId"`
	BountyStatus        model.BountyStatus   `json:"bountyStatus"`
	BountyDescription   string               `json:"bountyDescription"`
	Curator             AccountRef           `json:"curator"`
	ControllingMultisig *ControllingMultisig `json:"controllingMultisig"`
	CuratorIsMultisig   bool                 `json:"curatorIsMultisig"`
	EffectiveMultisig   string               `json:"effectiveMultisig"`
}

type discoveryService struct {
	chain chain.Client
}

// DiscoverBountyStructure resolves bounty -> curator -> controlling multisig.
// Structural absences (no bounty, no curator) are terminal and reported as
// not-discoverable; transport failures surface as retryable network problems.
func (s *discoveryService) DiscoverBountyStructure(ctx context.Context, network string, bountyId uint32) (*BountyStructure, *reject.ProblemWithTrace) {
	bounty, err := s.chain.Bounty(ctx, network, bountyId)
	if err != nil {
		return nil, networkProblem(err, network, bountyId)
	}
	if bounty == nil || bounty.Curator == "" {
		log.Info().Msg(fmt.Sprintf("Bounty %d on %s has no discoverable curator", bountyId, network))
		return nil, &reject.ProblemWithTrace{
			Problem: reject.NewProblem().
				WithTitle("Bounty structure not discoverable").
				WithStatus(http.StatusNotFound).
				WithCode(bountyNotDiscoverable).
				WithDetail("The bounty does not exist or has no curator assigned yet.").
				Build(),
			Cause: fmt.Errorf("bounty %d not discoverable on %s", bountyId, network),
		}
	}

	curator, problem := accountRef(bounty.Curator)
	if problem != nil {
		return nil, problem
	}

	structure := &BountyStructure{
		BountyId:          bountyId,
		BountyStatus:      bounty.Status,
		BountyDescription: bounty.Description,
		Curator:           *curator,
		EffectiveMultisig: curator.Address,
	}

	proxies, err := s.chain.ProxiesOf(ctx, network, curator.Address)
	if err != nil {
		return nil, networkProblem(err, network, bountyId)
	}

	if controlling := pickControllingProxy(proxies); controlling != nil {
		controller, problem := accountRef(controlling.Delegate)
		if problem != nil {
			return nil, problem
		}
		structure.ControllingMultisig = &ControllingMultisig{
			Address:   controller.Address,
			Raw:       controller.Raw,
			ProxyType: controlling.ProxyType,
		}
		structure.EffectiveMultisig = controller.Address
		return structure, nil
	}

	isMultisig, err := s.chain.AccountIsMultisig(ctx, network, curator.Address)
	if err != nil {
		return nil, networkProblem(err, network, bountyId)
	}
	structure.CuratorIsMultisig = isMultisig

	return structure, nil
}

// pickControllingProxy prefers an Any delegation, which is what a pure proxy
// curator grants its controlling multisig.
func pickControllingProxy(proxies []chain.ProxyDefinition) *chain.ProxyDefinition {
	for i, proxy := range proxies {
		if proxy.ProxyType == "Any" {
			return &proxies[i]
		}
	}
	if len(proxies) > 0 {
		return &proxies[0]
	}
	return nil
}

func accountRef(address string) (*AccountRef, *reject.ProblemWithTrace) {
	raw, _, err := ss58.Decode(address)
	if err != nil {
		return nil, &reject.ProblemWithTrace{
			Problem: reject.UnexpectedProblem(err),
			Cause:   err,
		}
	}
	normalized, err := ss58.Normalize(address)
	if err != nil {
		return nil, &reject.ProblemWithTrace{
			Problem: reject.UnexpectedProblem(err),
			Cause:   err,
		}
	}
	return &AccountRef{Address: normalized, Raw: "0x" + hex.EncodeToString(raw)}, nil
}

func networkProblem(err error, network string, bountyId uint32) *reject.ProblemWithTrace {
	parsed := chainerr.Classify(err.Error(), chainerr.Context{
		Network:  network,
		BountyId: &bountyId,
	})
	return &reject.ProblemWithTrace{
		Problem: parsed.Problem(),
		Cause:   err,
	}
}
