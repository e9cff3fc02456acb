package extract

// NodeExtractPrompt is the system prompt for node extraction. Placeholders:
// category, attribute vocabulary, category-specific examples, domain context.
const NodeExtractPrompt = `
# Task Context
You are a helpful assistant specialized in extracting structured graph nodes from tables of laboratory experiment data. You will be provided with a list of table columns, each carrying its column index, header, assigned attribute role, and one sample value from the first data row.

# Background Data
- Node category to extract: %s
- Allowed attribute names: %s

# Detailed Task Description & Rules
- Partition the given columns into one or more logical node instances of the category and assign the column values as typed attributes.
- Every attribute value MUST carry its provenance in the "index" field: the index of the column the value was read from, or the literal string "inferred" for values you deduced from context instead of reading from a cell.
- When a product is fabricated by combining more than one distinct input material, extract the product and each input material as separate nodes. A transformation of a single material collapses into one node.
- Ratio and concentration attributes belong to input materials, never to products.
- Only repeat a node name when the underlying real-world instances are genuinely repeated, for example multiple readings at different wavelengths. Never re-describe the same entity twice.
- Every node needs a "name" attribute. Infer a descriptive name from the context when no column provides one.
- Use only the allowed attribute names. Leave out attributes that have no value.

# Examples
%s

# Immediate Task Description or Request
Extract the %s nodes from the following columns. The experiment context is: %s
`

// RepairPrompt asks the model to fix output that failed validation. The
// placeholder carries the concrete validation failure.
const RepairPrompt = `
Your previous answer was invalid: %s

Return a corrected answer. Follow the output schema exactly, use only the allowed attribute names, and give every attribute value a valid "index": a column index that appears in the input, or the literal string "inferred".
`

// matterExample demonstrates the multi educt split and the provenance rules
// on the canonical catalyst table.
const matterExample = `
Columns:
  0 | id | identifier | CT-1001
  1 | material1 | name | Pt
  2 | material2 | name | Pd
  3 | ratio1 | ratio | 50
  4 | ratio2 | ratio | 50
Context: Catalyst Fabrication

Expected nodes:
1. name "Pt" (index 1), ratio "50" (index 3)
2. name "Pd" (index 2), ratio "50" (index 4)
3. name "Catalyst" (index "inferred"), identifier "CT-1001" (index 0)

Pt and Pd are distinct input materials, so the fabricated catalyst is a separate third node. The catalyst's name does not appear in any cell and is marked "inferred"; it carries the identifier but no ratio, because ratios belong to input materials.
`

const propertyExample = `
Columns:
  2 | conductivity | name | 1.2
  3 | unit | unit | S/cm
  4 | std dev | standard_deviation | 0.05
Context: Membrane Characterization

Expected nodes:
1. name "conductivity" (index 2), value "1.2" (index 2), unit "S/cm" (index 3), standard_deviation "0.05" (index 4)

The header names the property while the cell holds its value, so both provenance indices point at column 2.
`

const processExample = `
Columns:
  0 | fabrication step | name | Milling
  1 | step id | identifier | F-07
Context: Catalyst Fabrication

Expected nodes:
1. name "Milling" (index 0), identifier "F-07" (index 1)
`
