package chain

// ABI fragments for the two settlement-authority contracts. Only the
// entry points this service uses are declared; the contracts themselves
// are deployed and owned elsewhere.

const vaultABIJSON = `[
	{"type":"function","name":"deposit","stateMutability":"payable","inputs":[],"outputs":[]},
	{"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"pushToPool","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"updateLastActivity","stateMutability":"nonpayable","inputs":[],"outputs":[]},
	{"type":"function","name":"getUserInfo","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"username","type":"string"},{"name":"balance","type":"uint256"},{"name":"frozen","type":"bool"}]},
	{"type":"function","name":"gamePoolBalance","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

const blackjackABIJSON = `[
	{"type":"function","name":"startRound","stateMutability":"nonpayable","inputs":[
		{"name":"deckRoot","type":"bytes32"},
		{"name":"holePos","type":"uint8"},
		{"name":"holeLeaf","type":"bytes32"},
		{"name":"stakeWei","type":"uint256"}
	],"outputs":[]},
	{"type":"function","name":"settle","stateMutability":"nonpayable","inputs":[
		{"name":"roundId","type":"uint256"},
		{"name":"holeCardId","type":"uint8"},
		{"name":"holeSalt","type":"bytes32"},
		{"name":"holeProof","type":"bytes32[]"},
		{"name":"initial3","type":"tuple[]","components":[{"name":"pos","type":"uint8"},{"name":"cardId","type":"uint8"},{"name":"salt","type":"bytes32"},{"name":"proof","type":"bytes32[]"}]},
		{"name":"playerExtra","type":"tuple[]","components":[{"name":"pos","type":"uint8"},{"name":"cardId","type":"uint8"},{"name":"salt","type":"bytes32"},{"name":"proof","type":"bytes32[]"}]},
		{"name":"dealerDraws","type":"tuple[]","components":[{"name":"pos","type":"uint8"},{"name":"cardId","type":"uint8"},{"name":"salt","type":"bytes32"},{"name":"proof","type":"bytes32[]"}]},
		{"name":"doubled","type":"bool"},
		{"name":"split","type":"bool"},
		{"name":"hand1Extra","type":"tuple[]","components":[{"name":"pos","type":"uint8"},{"name":"cardId","type":"uint8"},{"name":"salt","type":"bytes32"},{"name":"proof","type":"bytes32[]"}]},
		{"name":"hand2Extra","type":"tuple[]","components":[{"name":"pos","type":"uint8"},{"name":"cardId","type":"uint8"},{"name":"salt","type":"bytes32"},{"name":"proof","type":"bytes32[]"}]}
	],"outputs":[]},
	{"type":"function","name":"MAX_BET","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"event","name":"RoundStarted","inputs":[
		{"name":"roundId","type":"uint256","indexed":true},
		{"name":"player","type":"address","indexed":true},
		{"name":"stakeWei","type":"uint256","indexed":false}
	],"anonymous":false},
	{"type":"event","name":"RoundSettled","inputs":[
		{"name":"roundId","type":"uint256","indexed":true},
		{"name":"player","type":"address","indexed":true},
		{"name":"payoutWei","type":"uint256","indexed":false}
	],"anonymous":false}
]`
