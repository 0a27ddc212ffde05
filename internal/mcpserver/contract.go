package mcpserver

// RoutingContract describes how artifacts are routed and how results are
// enveloped, for LLM consumers calling the routing and matrix tools.
const RoutingContract = `# Evidence Routing Contract

Every artifact belongs to exactly one registry source. Routing ranks the
pages of the platform that should surface it.

## Pages

Pages form a closed set: sixteen sector pages (` + "`" + `S01` + "`" + `..` + "`" + `S16` + "`" + `) and eight
module pages (` + "`" + `dashboard` + "`" + `, ` + "`" + `data-repository` + "`" + `, ` + "`" + `research-library` + "`" + `, ` + "`" + `timeline` + "`" + `,
` + "`" + `entities` + "`" + `, ` + "`" + `corporate-registry` + "`" + `, ` + "`" + `methodology` + "`" + `, ` + "`" + `vip-cockpits` + "`" + `).
Read the ` + "`" + `evidence://pages` + "`" + ` resource or call ` + "`" + `list_pages` + "`" + ` for names.

## Signals

Signals run in a fixed order. The first signal to claim a page owns it;
later signals never change its weight or rationale.

| Order | Signal                         | Weight                        |
|-------|--------------------------------|-------------------------------|
| 1     | Explicit registry sector edge  | 100 primary, 70 secondary     |
| 2     | Sector category of the source  | 60                            |
| 3     | Tag keywords                   | 15 per keyword, capped at 50  |
| 4     | Artifact type affinity         | 80                            |
| 5     | T0/T1 source                   | 40 on ` + "`" + `dashboard` + "`" + `              |

Results are sorted by weight, highest first. Ties keep signal order.

## Inputs

- ` + "`" + `sourceId` + "`" + ` is REQUIRED and must exist in the registry. An unknown source
  is not an error: the call succeeds with no pages and reason ` + "`" + `not_found` + "`" + `.
- ` + "`" + `artifactType` + "`" + ` is REQUIRED: dataset, document, event, project, entity or indicator.
- ` + "`" + `tags` + "`" + ` are matched case-insensitively; a tag matches a keyword when it
  equals or contains it.
- ` + "`" + `language` + "`" + ` is optional: en, ar or both.
- Persisting a decision requires ` + "`" + `artifactId` + "`" + `.

## Result envelope

Every tool returns JSON of the form:

` + "```" + `json
{"success": true, "reason": "", "error": "", "data": ...}
` + "```" + `

- ` + "`" + `reason` + "`" + ` is one of ` + "`" + `not_found` + "`" + `, ` + "`" + `unknown_page` + "`" + `, ` + "`" + `invalid_input` + "`" + `, ` + "`" + `unavailable` + "`" + `.
- A failed call still carries an empty ` + "`" + `data` + "`" + ` of the right shape.
- ` + "`" + `not_found` + "`" + ` and ` + "`" + `unknown_page` + "`" + ` come with ` + "`" + `success: true` + "`" + ` and empty data.
- Restricted sources (allowed use other than Open or Public) are listed with
  ` + "`" + `isRestricted: true` + "`" + `; do not quote their content verbatim.

## Coverage

Coverage is declared by the registry, never measured. ` + "`" + `verified` + "`" + ` is always
false and ` + "`" + `gaps` + "`" + ` is always empty.
`
