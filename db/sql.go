/*******************************************************************************
 * Copyright (c) 2025 Genome Research Ltd.
 *
 * Author: Michael Woolnough <mw31@sanger.ac.uk>
 *
 * Permission is hereby granted, free of charge, to any person obtaining
 * a copy of this software and associated documentation files (the
 * "Software"), to deal in the Software without restriction, including
 * without limitation the rights to use, copy, modify, merge, publish,
 * distribute, sublicense, and/or sell copies of the Software, and to
 * permit persons to whom the Software is furnished to do so, subject to
 * the following conditions:
 *
 * The above copyright notice and this permission notice shall be included
 * in all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
 * EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
 * MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
 * IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY
 * CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT,
 * TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION WITH THE
 * SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 ******************************************************************************/

//nolint:gochecknoglobals
package db

var tables = [...]string{
	"CREATE TABLE IF NOT EXISTS `print_sessions` (" +
		"`id` " + uuidColumn + " NOT NULL, " +
		"`created` BIGINT NOT NULL, " +
		"`expires` BIGINT NOT NULL, " +
		"`used` INTEGER NOT NULL DEFAULT 0, " +
		"PRIMARY KEY(`id`)" +
		");",

	"CREATE TABLE IF NOT EXISTS `print_files` (" +
		"`id` INTEGER PRIMARY KEY " + autoIncrement + ", " +
		"`sessionID` " + uuidColumn + " NOT NULL, " +
		"`name` TEXT NOT NULL, " +
		"`type` TEXT NOT NULL, " +
		"`size` BIGINT NOT NULL, " +
		"`data` " + blobColumn + " NOT NULL, " +
		"`uploaded` BIGINT NOT NULL, " +
		"`downloaded` BIGINT NOT NULL DEFAULT 0, " +
		"FOREIGN KEY(`sessionID`) REFERENCES `print_sessions`(`id`) ON DELETE CASCADE" +
		");",
}

var tableNames = [...]string{"print_sessions", "print_files"}

const (
	autoIncrement = "/*! AUTO_INCREMENT -- */ AUTOINCREMENT\n/*! */"
	uuidColumn    = "/*! VARCHAR(36) -- */ TEXT\n/*! */"
	blobColumn    = "/*! LONGBLOB -- */ BLOB\n/*! */"

	tableCheck = "SELECT " +
		"COUNT(1) " +
		"FROM /*! `information_schema`.`tables` -- */ `sqlite_master`\n/*! */ " +
		"WHERE " +
		"/*! `table_schema` = DATABASE() -- */ `type` = 'table'\n/*! */ AND " +
		"/*! `table_name` -- */ `name`\n/*! */ = ?;"

	createSession = "INSERT INTO `print_sessions` " +
		"(`id`, `created`, `expires`, `used`) " +
		"VALUES (?, ?, ?, 0);"
	createFile = "INSERT INTO `print_files` (" +
		"`sessionID`, " +
		"`name`, " +
		"`type`, " +
		"`size`, " +
		"`data`, " +
		"`uploaded`, " +
		"`downloaded`" +
		") VALUES (?, ?, ?, ?, ?, ?, 0);"

	selectSession = "SELECT " +
		"`id`, " +
		"`created`, " +
		"`expires`, " +
		"`used` " +
		"FROM `print_sessions` WHERE `id` = ?;"
	selectSessionFiles = "SELECT " +
		"`id`, " +
		"`sessionID`, " +
		"`name`, " +
		"`type`, " +
		"`size`, " +
		"`uploaded`, " +
		"`downloaded` " +
		"FROM `print_files` WHERE `sessionID` = ? " +
		"ORDER BY `uploaded` ASC, `id` ASC;"
	selectSessionFilesWithData = "SELECT " +
		"`id`, " +
		"`sessionID`, " +
		"`name`, " +
		"`type`, " +
		"`size`, " +
		"`uploaded`, " +
		"`downloaded`, " +
		"`data` " +
		"FROM `print_files` WHERE `sessionID` = ? " +
		"ORDER BY `uploaded` ASC, `id` ASC;"
	selectFile = "SELECT " +
		"`id`, " +
		"`sessionID`, " +
		"`name`, " +
		"`type`, " +
		"`size`, " +
		"`uploaded`, " +
		"`downloaded`, " +
		"`data` " +
		"FROM `print_files` WHERE `sessionID` = ? AND `id` = ?;"

	updateFileDownloaded = "UPDATE `print_files` SET " +
		"`downloaded` = ? " +
		"WHERE `sessionID` = ? AND `id` = ?;"
	updateSessionUsed = "UPDATE `print_sessions` SET " +
		"`used` = 1 " +
		"WHERE `id` = ?;"

	deleteSession         = "DELETE FROM `print_sessions` WHERE `id` = ?;"
	deleteExpiredSessions = "DELETE FROM `print_sessions` WHERE `expires` < ?;"
	deleteOrphanedFiles   = "DELETE FROM `print_files` WHERE `sessionID` NOT IN (SELECT `id` FROM `print_sessions`);"
)
