// Package contracts holds the ABI definitions the escrow client binds
// against.
package contracts

// CrushEscrowABI is the claim-escrow contract surface: three entry points
// plus the owner-only sweep and the Ownable read.
const CrushEscrowABI = `[
  {
    "type": "function",
    "name": "createClaim",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "claimCodeHash", "type": "bytes32"},
      {"name": "amount", "type": "uint256"},
      {"name": "recipient", "type": "address"},
      {"name": "message", "type": "string"}
    ],
    "outputs": []
  },
  {
    "type": "function",
    "name": "claimTokens",
    "stateMutability": "nonpayable",
    "inputs": [{"name": "claimCodeHash", "type": "bytes32"}],
    "outputs": []
  },
  {
    "type": "function",
    "name": "getClaimInfo",
    "stateMutability": "view",
    "inputs": [{"name": "claimCodeHash", "type": "bytes32"}],
    "outputs": [
      {"name": "amount", "type": "uint256"},
      {"name": "recipient", "type": "address"},
      {"name": "claimed", "type": "bool"},
      {"name": "message", "type": "string"},
      {"name": "sender", "type": "address"}
    ]
  },
  {
    "type": "function",
    "name": "withdrawStuckTokens",
    "stateMutability": "nonpayable",
    "inputs": [{"name": "tokenAddress", "type": "address"}],
    "outputs": []
  },
  {
    "type": "function",
    "name": "owner",
    "stateMutability": "view",
    "inputs": [],
    "outputs": [{"name": "", "type": "address"}]
  },
  {
    "type": "event",
    "name": "ClaimCreated",
    "inputs": [
      {"name": "claimCodeHash", "type": "bytes32", "indexed": true},
      {"name": "amount", "type": "uint256", "indexed": false},
      {"name": "recipient", "type": "address", "indexed": false},
      {"name": "sender", "type": "address", "indexed": false}
    ],
    "anonymous": false
  },
  {
    "type": "event",
    "name": "Claimed",
    "inputs": [
      {"name": "claimCodeHash", "type": "bytes32", "indexed": true},
      {"name": "amount", "type": "uint256", "indexed": false},
      {"name": "recipient", "type": "address", "indexed": false}
    ],
    "anonymous": false
  }
]`

// ERC20ABI covers the subset of the token standard the escrow flow touches.
const ERC20ABI = `[
  {
    "type": "function",
    "name": "balanceOf",
    "stateMutability": "view",
    "inputs": [{"name": "owner", "type": "address"}],
    "outputs": [{"name": "", "type": "uint256"}]
  },
  {
    "type": "function",
    "name": "approve",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "spender", "type": "address"},
      {"name": "amount", "type": "uint256"}
    ],
    "outputs": [{"name": "", "type": "bool"}]
  },
  {
    "type": "function",
    "name": "allowance",
    "stateMutability": "view",
    "inputs": [
      {"name": "owner", "type": "address"},
      {"name": "spender", "type": "address"}
    ],
    "outputs": [{"name": "", "type": "uint256"}]
  },
  {
    "type": "function",
    "name": "transfer",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "to", "type": "address"},
      {"name": "amount", "type": "uint256"}
    ],
    "outputs": [{"name": "", "type": "bool"}]
  },
  {
    "type": "function",
    "name": "transferFrom",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "from", "type": "address"},
      {"name": "to", "type": "address"},
      {"name": "amount", "type": "uint256"}
    ],
    "outputs": [{"name": "", "type": "bool"}]
  },
  {
    "type": "function",
    "name": "decimals",
    "stateMutability": "view",
    "inputs": [],
    "outputs": [{"name": "", "type": "uint8"}]
  }
]`
