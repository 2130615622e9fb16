package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/jaswinder6991/dao-agent-next/internal/dao"
	"github.com/jaswinder6991/dao-agent-next/internal/identity"
	"github.com/jaswinder6991/dao-agent-next/internal/neartx"
	"github.com/jaswinder6991/dao-agent-next/internal/pikespeak"
)

func (s *Server) identity(c echo.Context) identity.Identity {
	return identity.FromHeader(c.Request().Header.Get(identity.Header), s.cfg.FallbackAccount)
}

// transferProposal builds the pending-call descriptor the caller's wallet
// turns into a transaction. Transfers stay descriptors; the other builder
// endpoints assemble full unsigned transactions.
func (s *Server) transferProposal(c echo.Context, tokenID string) error {
	daoID := c.Param("dao")

	action, err := s.builder.TransferProposal(
		c.Request().Context(),
		daoID,
		c.Param("receiver"),
		c.Param("quantity"),
		tokenID,
	)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, []dao.PendingCall{dao.PendingFromAction(daoID, action)})
}

func (s *Server) transferNear(c echo.Context) error {
	return s.transferProposal(c, "")
}

func (s *Server) transferUSDT(c echo.Context) error {
	return s.transferProposal(c, s.cfg.USDTTokenID)
}

func (s *Server) transferUSDC(c echo.Context) error {
	return s.transferProposal(c, s.cfg.USDCTokenID)
}

func (s *Server) memberDAOs(c echo.Context) error {
	accountID := c.Param("account")
	if accountID == "" {
		accountID = s.identity(c).AccountID
	}

	daos, err := s.indexer.MemberDAOs(c.Request().Context(), accountID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{"daos": daos})
}

func (s *Server) daoProposals(c echo.Context) error {
	count := s.cfg.DefaultProposalCount
	if v := c.QueryParam("count"); v != "" {
		// Non-numeric counts silently fall back to the default.
		if parsed, err := strconv.Atoi(v); err == nil {
			count = parsed
		}
	}

	proposals, err := s.indexer.Proposals(c.Request().Context(), []string{c.Param("dao")}, count, nil)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{"proposals": proposals})
}

func (s *Server) votableProposals(c echo.Context) error {
	ctx := c.Request().Context()

	accountID := c.Param("account")
	if accountID == "" {
		accountID = s.identity(c).AccountID
	}

	daos, err := s.indexer.MemberDAOs(ctx, accountID)
	if err != nil {
		return err
	}

	eligible, err := s.builder.VoterDAOs(ctx, accountID, daos)
	if err != nil {
		return err
	}

	proposals, err := s.indexer.Proposals(ctx, eligible, 0, []string{"InProgress"})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{"proposals": proposals})
}

func (s *Server) proposalDetail(c echo.Context) error {
	proposal, err := s.indexer.ProposalByID(c.Request().Context(), c.Param("dao"), c.Param("proposalId"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{"proposal": proposal})
}

func (s *Server) vote(c echo.Context) error {
	caller := s.identity(c)

	action, err := s.builder.VoteAction(c.Param("proposalId"), c.Param("action"))
	if err != nil {
		return err
	}

	tx, err := s.assembler.Assemble(
		c.Request().Context(),
		caller.AccountID,
		caller.PublicKey,
		c.Param("dao"),
		[]neartx.Action{action},
	)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, tx)
}

func (s *Server) allDAOs(c echo.Context) error {
	daos, err := s.indexer.AllDAOs(c.Request().Context())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{"daos": daos})
}

func (s *Server) matchDAOs(c echo.Context) error {
	keyword := strings.ToLower(c.Param("keyword"))

	daos, err := s.indexer.AllDAOs(c.Request().Context())
	if err != nil {
		return err
	}

	filtered := []pikespeak.DAOEntry{}
	for _, entry := range daos {
		if strings.Contains(strings.ToLower(entry.ContractID), keyword) {
			filtered = append(filtered, entry)
		}
	}

	return c.JSON(http.StatusOK, map[string]any{"filteredDaos": filtered})
}

func (s *Server) daoPolicy(c echo.Context) error {
	policy, err := s.builder.RawPolicy(c.Request().Context(), c.Param("daoId"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{"dao": policy})
}

func (s *Server) userProposals(c echo.Context) error {
	accountID := c.QueryParam("account")
	if accountID == "" {
		accountID = s.identity(c).AccountID
	}

	proposals, err := s.indexer.ProposalsByProposer(c.Request().Context(), accountID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{"proposals": proposals})
}

func (s *Server) addMember(c echo.Context) error {
	caller := s.identity(c)
	daoID := c.Param("dao")

	action, err := s.builder.AddMemberProposal(
		c.Request().Context(),
		daoID,
		c.Param("memberAccount"),
		c.Param("role"),
	)
	if err != nil {
		return err
	}

	tx, err := s.assembler.Assemble(c.Request().Context(), caller.AccountID, caller.PublicKey, daoID, []neartx.Action{action})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, tx)
}

func (s *Server) removeMember(c echo.Context) error {
	caller := s.identity(c)
	daoID := c.Param("dao")

	action, err := s.builder.RemoveMemberProposal(
		c.Request().Context(),
		daoID,
		c.Param("memberAccount"),
		c.Param("role"),
	)
	if err != nil {
		return err
	}

	tx, err := s.assembler.Assemble(c.Request().Context(), caller.AccountID, caller.PublicKey, daoID, []neartx.Action{action})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, tx)
}

func (s *Server) swapFromNear(c echo.Context) error {
	ctx := c.Request().Context()
	caller := s.identity(c)

	daoID := c.Param("dao")
	tokenOutID := c.Param("tokenOutId")
	sendAmount := c.Param("sendAmount")

	// The DAO executes the swap, so it is the account that must be
	// registered on the destination asset.
	plan, err := s.planner.Find(ctx, daoID, s.cfg.WrapNearID, tokenOutID, sendAmount)
	if err != nil {
		return err
	}

	action, err := s.builder.SwapProposal(ctx, daoID, plan.Steps[0], sendAmount, tokenOutID)
	if err != nil {
		return err
	}

	tx, err := s.assembler.Assemble(ctx, caller.AccountID, caller.PublicKey, daoID, []neartx.Action{action})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, tx)
}
