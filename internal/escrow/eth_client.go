package escrow

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"claimrails/internal/contracts"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

// EthClient drives a deployed claim-escrow contract over JSON-RPC: chain
// mode. It signs with the service key, so the on-chain sender of every
// createClaim is the service account; the approve-then-create orchestration
// lives here.
type EthClient struct {
	client     *ethclient.Client
	escrow     *bind.BoundContract
	token      *bind.BoundContract
	escrowAddr common.Address
	tokenAddr  common.Address
	account    common.Address
	chainID    *big.Int
	transacts  *bind.TransactOpts
	timeout    time.Duration
	log        zerolog.Logger
}

type EthClientConfig struct {
	RPCURL         string
	PrivateKeyHex  string
	EscrowAddress  string
	TokenAddress   string
	ReceiptTimeout time.Duration
	Log            zerolog.Logger
}

func NewEthClient(ctx context.Context, cfg EthClientConfig) (*EthClient, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if cfg.EscrowAddress == "" {
		return nil, fmt.Errorf("escrow contract address is required")
	}
	if cfg.TokenAddress == "" {
		return nil, fmt.Errorf("token contract address is required")
	}
	if cfg.PrivateKeyHex == "" {
		return nil, fmt.Errorf("private key is required for submitting transactions")
	}

	cli, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	escrowABI, err := abi.JSON(strings.NewReader(contracts.CrushEscrowABI))
	if err != nil {
		return nil, fmt.Errorf("parse escrow abi: %w", err)
	}
	tokenABI, err := abi.JSON(strings.NewReader(contracts.ERC20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse token abi: %w", err)
	}

	pk, err := parsePrivateKey(cfg.PrivateKeyHex)
	if err != nil {
		return nil, err
	}

	chainID, err := cli.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}

	txOpts, err := bind.NewKeyedTransactorWithChainID(pk, chainID)
	if err != nil {
		return nil, fmt.Errorf("transactor: %w", err)
	}
	txOpts.GasLimit = 0 // let node estimate
	txOpts.GasPrice = nil
	txOpts.Nonce = nil

	escrowAddr := common.HexToAddress(cfg.EscrowAddress)
	tokenAddr := common.HexToAddress(cfg.TokenAddress)

	timeout := cfg.ReceiptTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}

	return &EthClient{
		client:     cli,
		escrow:     bind.NewBoundContract(escrowAddr, escrowABI, cli, cli, cli),
		token:      bind.NewBoundContract(tokenAddr, tokenABI, cli, cli, cli),
		escrowAddr: escrowAddr,
		tokenAddr:  tokenAddr,
		account:    crypto.PubkeyToAddress(pk.PublicKey),
		chainID:    chainID,
		transacts:  txOpts,
		timeout:    timeout,
		log:        cfg.Log,
	}, nil
}

func parsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(hexKey, "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// Account returns the service's signing address, the on-chain sender of
// every transaction this client submits.
func (c *EthClient) Account() common.Address {
	return c.account
}

func (c *EthClient) CreateClaim(ctx context.Context, req CreateClaimRequest) (CreateClaimResult, error) {
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return CreateClaimResult{}, ErrInvalidAmount
	}

	if err := c.ensureAllowance(ctx, req.Amount); err != nil {
		return CreateClaimResult{}, err
	}

	opts := *c.transacts
	opts.Context = ctx

	tx, err := c.escrow.Transact(&opts, "createClaim", req.ClaimCodeHash, req.Amount, req.Recipient, req.Message)
	if err != nil {
		return CreateClaimResult{}, mapRevert(fmt.Errorf("create claim tx: %w", err))
	}
	if err := c.awaitSuccess(ctx, tx); err != nil {
		return CreateClaimResult{}, err
	}

	c.log.Info().
		Str("txHash", tx.Hash().Hex()).
		Str("claimCodeHash", req.ClaimCodeHash.Hex()).
		Str("amount", req.Amount.String()).
		Msg("claim created on-chain")
	return CreateClaimResult{TxHash: tx.Hash().Hex()}, nil
}

func (c *EthClient) ClaimTokens(ctx context.Context, req ClaimTokensRequest) (ClaimTokensResult, error) {
	// The contract pays out to the bound recipient and rejects any other
	// caller, so this only succeeds when the service account is that
	// recipient. Read the record first to report the amount paid.
	rec, err := c.GetClaimInfo(ctx, req.ClaimCodeHash)
	if err != nil {
		return ClaimTokensResult{}, err
	}
	if !rec.Exists() {
		return ClaimTokensResult{}, ErrClaimNotFound
	}

	opts := *c.transacts
	opts.Context = ctx

	tx, err := c.escrow.Transact(&opts, "claimTokens", req.ClaimCodeHash)
	if err != nil {
		return ClaimTokensResult{}, mapRevert(fmt.Errorf("claim tokens tx: %w", err))
	}
	if err := c.awaitSuccess(ctx, tx); err != nil {
		return ClaimTokensResult{}, err
	}

	return ClaimTokensResult{Amount: rec.Amount, TxHash: tx.Hash().Hex()}, nil
}

func (c *EthClient) GetClaimInfo(ctx context.Context, hash common.Hash) (ClaimRecord, error) {
	var out []interface{}
	callOpts := &bind.CallOpts{Context: ctx}
	if err := c.escrow.Call(callOpts, &out, "getClaimInfo", hash); err != nil {
		return ClaimRecord{}, mapRevert(fmt.Errorf("get claim info: %w", err))
	}
	if len(out) != 5 {
		return ClaimRecord{}, fmt.Errorf("unexpected getClaimInfo output arity %d", len(out))
	}

	return ClaimRecord{
		Amount:    abi.ConvertType(out[0], new(big.Int)).(*big.Int),
		Recipient: *abi.ConvertType(out[1], new(common.Address)).(*common.Address),
		Claimed:   *abi.ConvertType(out[2], new(bool)).(*bool),
		Message:   *abi.ConvertType(out[3], new(string)).(*string),
		Sender:    *abi.ConvertType(out[4], new(common.Address)).(*common.Address),
	}, nil
}

func (c *EthClient) WithdrawStuckTokens(ctx context.Context, req SweepRequest) (SweepResult, error) {
	opts := *c.transacts
	opts.Context = ctx

	tx, err := c.escrow.Transact(&opts, "withdrawStuckTokens", req.Token)
	if err != nil {
		return SweepResult{}, mapRevert(fmt.Errorf("withdraw stuck tokens tx: %w", err))
	}
	if err := c.awaitSuccess(ctx, tx); err != nil {
		return SweepResult{}, err
	}
	return SweepResult{TxHash: tx.Hash().Hex()}, nil
}

func (c *EthClient) Ping(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("rpc client not configured")
	}
	_, err := c.client.BlockNumber(ctx)
	return err
}

// ensureAllowance tops up the escrow contract's allowance from the service
// account before a pull. Skipped when the standing allowance already covers
// the amount.
func (c *EthClient) ensureAllowance(ctx context.Context, amount *big.Int) error {
	var out []interface{}
	callOpts := &bind.CallOpts{Context: ctx}
	if err := c.token.Call(callOpts, &out, "allowance", c.account, c.escrowAddr); err != nil {
		return fmt.Errorf("read allowance: %w", err)
	}
	if len(out) == 1 {
		current := abi.ConvertType(out[0], new(big.Int)).(*big.Int)
		if current.Cmp(amount) >= 0 {
			return nil
		}
	}

	opts := *c.transacts
	opts.Context = ctx

	tx, err := c.token.Transact(&opts, "approve", c.escrowAddr, amount)
	if err != nil {
		return fmt.Errorf("%w: approve tx: %v", ErrTokenTransferFailed, err)
	}
	if err := c.awaitSuccess(ctx, tx); err != nil {
		return fmt.Errorf("%w: approve: %v", ErrTokenTransferFailed, err)
	}
	return nil
}

// awaitSuccess blocks until the transaction is mined and checks its status.
func (c *EthClient) awaitSuccess(ctx context.Context, tx *types.Transaction) error {
	waitCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	receipt, err := WaitForReceipt(waitCtx, c.client, tx)
	if err != nil {
		return fmt.Errorf("wait receipt %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("transaction %s reverted", tx.Hash().Hex())
	}
	return nil
}

// WaitForReceipt polls until the transaction is mined or context cancelled.
func WaitForReceipt(ctx context.Context, client *ethclient.Client, tx *types.Transaction) (*types.Receipt, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		receipt, err := client.TransactionReceipt(ctx, tx.Hash())
		if receipt != nil {
			return receipt, nil
		}
		if err != nil && err.Error() != "not found" {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
