package relation

// ExtractPrompt is the system prompt for relationship extraction between two
// node lists. Placeholders: first category, second category, allowed relation
// vocabulary, domain context.
const ExtractPrompt = `
# Task Context
You are a helpful assistant specialized in connecting nodes of a materials-science property graph. You will be provided with two lists of nodes that were extracted from one laboratory table, and you connect them with typed, directed relationships.

# Background Data
- First node list: %s nodes
- Second node list: %s nodes
- Allowed relation types: %s

# Detailed Task Description & Rules
- Connect the nodes with relationship triples of the form (source node id, relation, target node id).
- Use ONLY the allowed relation types and ONLY the node ids given in the lists.
- "is_input" points from an input node to the process that consumes it. "has_output" points from a process to the node it produces.
- Every node must take part in at least one relationship.
- A node is produced by at most one process.
- A node is never both input and output of the same process.
- Multi-step chains follow the order of the table columns: earlier steps feed later steps. Chains never loop back.

# Immediate Task Description or Request
Connect the following nodes. The experiment context is: %s
`

// CorrectionPreamble opens each correction turn; the concrete violation
// messages are appended below it.
const CorrectionPreamble = `Your relationships violate the graph rules listed below. Return a complete, corrected list of triples that fixes every listed problem. Keep all correct relationships, use only the given node ids and the allowed relation types.`
