/*
Package scanner sweeps vault notes for credential-looking content.

Tasks arrive from arbitrary dropped files, so secrets can end up
sitting in a markdown note in plain text. The scanner runs six
compiled patterns over every *.md in the workflow folders
(Needs_Action, In_Progress, Done, Plans):

	aws_access_key     AKIA/ABIA/ACCA/ASIA key ids
	api_token          api_key/api_token assignments ≥20 chars
	pem_key            -----BEGIN ... PRIVATE KEY-----
	password_field     password/passwd/pwd assignments ≥8 chars
	generic_secret     secret/token/bearer assignments ≥20 chars
	connection_string  db URLs with embedded user:pass@

Findings carry the pattern name, file, line number, and a masked form
of the match: long values keep the first four and last two characters,
short ones only the first two. The raw secret never leaves the file -
not into findings, not into the audit log, not into stdout.

The loop appends a credential_flagged audit entry per finding, which
feeds the dashboard's alert table; the CLI's scan command prints the
masked findings and exits non-zero when any exist.
*/
package scanner
