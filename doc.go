/*
Package itsdb reads and writes [incr tsdb()] test-suite profiles.

A profile is a directory holding a schema file called “relations” and one
flat file per table. We implement:

1. Relations, the parsed schema, including join path search between tables
that share key columns.

2. Tables, either held in memory (detached) or backed by a table file
(attached) and read lazily.

3. Test suites, a directory of tables with selection, joins, statistics and
a batch processing pipeline that feeds a column to an external processor.

# Technical Details

**Relations file.**
Table headers (“item:”) are followed by indented field lines of the form
“name :datatype [:key] [:partial] [# comment]”. Table and field order is
kept and used for writing.

**Row encoding.**
One row per line, cells joined by “@”. Inside a cell a backslash is written
as “\\”, a newline as “\n” and “@” as “\s”. An empty cell stands for the
field's default (“-1” for integers and a few coded fields).

**Table files.**
A table is stored in “name” or “name.gz”. The gzip file is used only when it
exists and is newer than the plain one. Full writes go to a temporary file
that is renamed into place; the sibling with the other compression state is
then removed. Readers accept CRLF line ends and a last line without a
newline; appending terminates such a line before writing new rows.

**Attached tables.**
An attached table keeps one slot per row: unloaded (read from the file on
demand) or overridden (held in memory). Commit appends to the file when the
only overrides are rows past the last committed one, and rewrites it
otherwise.

**Catalog.**
Random access into a plain-text file normally needs a scan. A Catalog is a
Bolt database of line offsets per file, validated by a fingerprint of the
file's size, modification time and first 4 KiB. Format of an entry:
1. Fingerprint (uint64, little endian).
2. Number of offsets (uvarint).
3. Each offset as a delta from the previous one (uvarint).
*/
package itsdb
