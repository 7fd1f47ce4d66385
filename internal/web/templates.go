package web

import (
	"html/template"

	"github.com/allone-dev/allone/internal/vault"
)

// parseTemplates parses every page into one set for gin's HTML renderer.
// Pages are looked up by the name in their define block.
func parseTemplates() (*template.Template, error) {
	funcs := template.FuncMap{
		"longDate":  vault.FormatLongDate,
		"shortDate": vault.FormatShortDate,
		"fileSize":  vault.FormatFileSize,
		"fileKind":  vault.FileKind,
	}

	tmpl := template.New("allone").Funcs(funcs)
	for _, page := range []string{
		layoutTemplate,
		loadingTemplate,
		loginTemplate,
		signupTemplate,
		verifyOTPTemplate,
		forgotPasswordTemplate,
		resetPasswordTemplate,
		logoutTemplate,
		homeTemplate,
		profileTemplate,
		categoriesTemplate,
		noteCategoryTemplate,
		dateCategoryTemplate,
		docCategoryTemplate,
		albumsTemplate,
		albumTemplate,
		errorTemplate,
	} {
		if _, err := tmpl.Parse(page); err != nil {
			return nil, err
		}
	}
	return tmpl, nil
}

const layoutTemplate = `{{define "header"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
{{if .Refresh}}<meta http-equiv="refresh" content="{{.Refresh}}">{{end}}
<title>{{.Title}} - AllOne</title>
<style>
body{font-family:system-ui,sans-serif;margin:0;background:#f8fafc;color:#1f2937}
nav{display:flex;gap:1rem;align-items:center;padding:.75rem 1.5rem;background:#fff;border-bottom:1px solid #e5e7eb}
nav .brand{font-weight:700;color:#4f46e5;margin-right:auto;text-decoration:none}
main{max-width:56rem;margin:2rem auto;padding:0 1rem}
.card{background:#fff;border-radius:1rem;box-shadow:0 1px 3px rgba(0,0,0,.08);padding:1.5rem;margin-bottom:1rem}
.error{background:#fef2f2;color:#b91c1c;padding:.75rem 1rem;border-radius:.5rem}
.notice{background:#eef2ff;color:#4338ca;padding:.75rem 1rem;border-radius:.5rem}
label{display:block;margin:.75rem 0 .25rem}
input[type=text],input[type=email],input[type=password],input[type=date],textarea,select{width:100%;padding:.5rem;border:1px solid #d1d5db;border-radius:.5rem;box-sizing:border-box}
button{background:#4f46e5;color:#fff;border:0;border-radius:999px;padding:.6rem 1.4rem;cursor:pointer;margin-top:1rem}
button.secondary{background:#e5e7eb;color:#374151}
button.danger{background:#ef4444}
.grid{display:grid;grid-template-columns:repeat(auto-fill,minmax(14rem,1fr));gap:1rem}
.pinned{border-left:4px solid #f59e0b}
form.inline{display:inline}
img.thumb{width:100%;border-radius:.75rem}
</style>
</head>
<body>
<nav>
<a class="brand" href="/">AllOne</a>
{{if .Authenticated}}
<a href="/notes">Notes</a>
<a href="/dates">Dates</a>
<a href="/documents">Documents</a>
<a href="/albums">Albums</a>
<a href="/profile">{{.Email}}</a>
<a href="/logout">Log out</a>
{{else}}
<a href="/login">Log in</a>
<a href="/signup">Sign up</a>
{{end}}
</nav>
<main>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
{{if .Notice}}<p class="notice">{{.Notice}}</p>{{end}}
{{end}}

{{define "footer"}}
</main>
</body>
</html>
{{end}}`

const loadingTemplate = `{{define "loading"}}{{template "header" .}}
<div class="card">
<h1>Loading…</h1>
<p>Checking your session.</p>
</div>
{{template "footer" .}}{{end}}`

const loginTemplate = `{{define "login"}}{{template "header" .}}
<div class="card">
<h1>Welcome back</h1>
<form method="post" action="/login">
<input type="hidden" name="from" value="{{.From}}">
<label for="email">Email</label>
<input type="email" id="email" name="email" value="{{.FormEmail}}" required>
<label for="password">Password</label>
<input type="password" id="password" name="password" required>
<button type="submit">Log in</button>
</form>
<p><a href="/forgot-password">Forgot password?</a></p>
<p>New here? <a href="/signup">Create an account</a></p>
</div>
{{template "footer" .}}{{end}}`

const signupTemplate = `{{define "signup"}}{{template "header" .}}
<div class="card">
<h1>Create your vault</h1>
<form method="post" action="/signup">
<label for="name">Name</label>
<input type="text" id="name" name="name" value="{{.FormName}}" required>
<label for="email">Email</label>
<input type="email" id="email" name="email" value="{{.FormEmail}}" required>
<label for="password">Password</label>
<input type="password" id="password" name="password" required>
<label><input type="checkbox" name="agree_terms" value="true"> I agree to the terms and conditions</label>
<button type="submit">Sign up</button>
</form>
<p>Already have an account? <a href="/login">Log in</a></p>
</div>
{{template "footer" .}}{{end}}`

const verifyOTPTemplate = `{{define "verify-otp"}}{{template "header" .}}
<div class="card">
<h1>Verify your email</h1>
<p>We sent a 6-digit code to <strong>{{.PendingEmail}}</strong>.</p>
<form method="post" action="/verify-otp">
<label for="otp">Code</label>
<input type="text" id="otp" name="otp" inputmode="numeric" maxlength="6" autocomplete="one-time-code" required>
<button type="submit">Verify</button>
</form>
<form method="post" action="/verify-otp/cancel">
<button type="submit" class="secondary">Use a different email</button>
</form>
</div>
{{template "footer" .}}{{end}}`

const forgotPasswordTemplate = `{{define "forgot-password"}}{{template "header" .}}
<div class="card">
<h1>Forgot password</h1>
<form method="post" action="/forgot-password">
<label for="email">Email</label>
<input type="email" id="email" name="email" value="{{.FormEmail}}" required>
<button type="submit">Send code</button>
</form>
<p><a href="/login">Back to login</a></p>
</div>
{{template "footer" .}}{{end}}`

const resetPasswordTemplate = `{{define "reset-password"}}{{template "header" .}}
<div class="card">
<h1>Reset password</h1>
<p>Enter the code sent to <strong>{{.PendingEmail}}</strong> and choose a new password.</p>
<form method="post" action="/reset-password">
<label for="otp">Code</label>
<input type="text" id="otp" name="otp" inputmode="numeric" maxlength="6" required>
<label for="password">New password</label>
<input type="password" id="password" name="password" required>
<label for="confirm_password">Confirm password</label>
<input type="password" id="confirm_password" name="confirm_password" required>
<button type="submit">Reset password</button>
</form>
<form method="post" action="/reset-password/cancel">
<button type="submit" class="secondary">Cancel</button>
</form>
</div>
{{template "footer" .}}{{end}}`

const logoutTemplate = `{{define "logout"}}{{template "header" .}}
<div class="card">
<h1>Come back soon!</h1>
<p>Are you sure you want to log out? Your private memories will be waiting for you when you return.</p>
<form method="post" action="/logout">
<button type="submit" class="danger">Yes, log me out</button>
</form>
<p><a href="/">Cancel</a></p>
</div>
{{template "footer" .}}{{end}}`

const homeTemplate = `{{define "home"}}{{template "header" .}}
<h1>Your vault</h1>
<div class="grid">
<a class="card" href="/notes"><h2>Private notes</h2><p>{{.NoteCount}} categories</p></a>
<a class="card" href="/dates"><h2>Important dates</h2><p>{{.DateCount}} categories</p></a>
<a class="card" href="/documents"><h2>My documents</h2><p>{{.DocCount}} categories</p></a>
<a class="card" href="/albums"><h2>Memory albums</h2><p>{{.AlbumCount}} albums</p></a>
</div>
{{template "footer" .}}{{end}}`

const profileTemplate = `{{define "profile"}}{{template "header" .}}
<div class="card">
<h1>Profile</h1>
<p>Email: <strong>{{.Email}}</strong></p>
<p>User ID: <code>{{.UserID}}</code></p>
<p>Session: {{.TokenStatus}}</p>
<p><a href="/logout">Log out</a></p>
</div>
{{template "footer" .}}{{end}}`

const categoriesTemplate = `{{define "categories"}}{{template "header" .}}
<h1>{{.Heading}}</h1>
<form method="get" action="{{.BasePath}}"><input type="text" name="q" value="{{.Query}}" placeholder="Search"></form>
<div class="grid">
{{range .Categories}}
<a class="card" href="{{$.BasePath}}/{{.ID}}">
{{if .Thumbnail}}<img class="thumb" src="{{.Thumbnail}}" alt="">{{end}}
<h2>{{.Name}}</h2>
<p>{{.Description}}</p>
</a>
{{else}}
<p>No categories yet.</p>
{{end}}
</div>
<div class="card">
<h2>New category</h2>
<form method="post" action="{{.BasePath}}" enctype="multipart/form-data">
<label for="name">Name</label>
<input type="text" id="name" name="name" required>
<label for="description">Description</label>
<textarea id="description" name="description"></textarea>
<label for="color">Color</label>
<input type="text" id="color" name="color">
<label for="thumbnail">Thumbnail</label>
<input type="file" id="thumbnail" name="thumbnail" accept="image/*">
<button type="submit">Create</button>
</form>
</div>
{{template "footer" .}}{{end}}`

const noteCategoryTemplate = `{{define "note-category"}}{{template "header" .}}
<h1>{{.Category.Name}}</h1>
<p>{{.Category.Description}}</p>
<form method="get"><input type="text" name="q" value="{{.Query}}" placeholder="Search notes"></form>
{{range .Notes}}
<div class="card{{if .IsPinned}} pinned{{end}}">
<h2>{{.Title}}</h2>
<p>{{.Content}}</p>
<small>{{shortDate .CreatedAt}}</small>
<form class="inline" method="post" action="{{$.BasePath}}/items/{{.ID}}/pin">
<input type="hidden" name="pinned" value="{{if .IsPinned}}false{{else}}true{{end}}">
<button type="submit" class="secondary">{{if .IsPinned}}Unpin{{else}}Pin{{end}}</button>
</form>
<form class="inline" method="post" action="{{$.BasePath}}/items/{{.ID}}/delete">
<button type="submit" class="danger">Delete</button>
</form>
</div>
{{else}}
<p>No notes yet.</p>
{{end}}
<div class="card">
<h2>Add note</h2>
<form method="post" action="{{.BasePath}}">
<label for="title">Title</label>
<input type="text" id="title" name="title" required>
<label for="content">Content</label>
<textarea id="content" name="content" rows="6" required></textarea>
<button type="submit">Save</button>
</form>
</div>
{{template "footer" .}}{{end}}`

const dateCategoryTemplate = `{{define "date-category"}}{{template "header" .}}
<h1>{{.Category.Name}}</h1>
<p>{{.Category.Description}}</p>
<p>{{if .UpcomingOnly}}<a href="{{.BasePath}}">Show all</a>{{else}}<a href="{{.BasePath}}?upcoming=1">Upcoming only</a>{{end}}</p>
{{range .Dates}}
<div class="card">
<h2>{{.Title}}</h2>
<p>{{longDate .Date}}{{if .Reminder}} (reminder){{end}}</p>
<p>{{.Description}}</p>
<form class="inline" method="post" action="{{$.BasePath}}/items/{{.ID}}/delete">
<button type="submit" class="danger">Delete</button>
</form>
</div>
{{else}}
<p>No dates yet.</p>
{{end}}
<div class="card">
<h2>Add date</h2>
<form method="post" action="{{.BasePath}}">
<label for="title">Title</label>
<input type="text" id="title" name="title" required>
<label for="date">Date</label>
<input type="date" id="date" name="date" required>
<label for="description">Description</label>
<textarea id="description" name="description"></textarea>
<label><input type="checkbox" name="reminder" value="true"> Remind me</label>
<button type="submit">Save</button>
</form>
</div>
{{template "footer" .}}{{end}}`

const docCategoryTemplate = `{{define "doc-category"}}{{template "header" .}}
<h1>{{.Category.Name}}</h1>
<p>{{.Category.Description}}</p>
<form method="get"><input type="text" name="q" value="{{.Query}}" placeholder="Search documents"></form>
{{range .Documents}}
<div class="card">
<h2>{{.Title}}</h2>
<p>{{fileKind .FileType}} · {{fileSize .FileSize}} · {{shortDate .CreatedAt}}</p>
<a href="{{$.BasePath}}/items/{{.ID}}/download">Download</a>
<form class="inline" method="post" action="{{$.BasePath}}/items/{{.ID}}/delete">
<button type="submit" class="danger">Delete</button>
</form>
</div>
{{else}}
<p>No documents yet.</p>
{{end}}
<div class="card">
<h2>Upload document</h2>
<form method="post" action="{{.BasePath}}" enctype="multipart/form-data">
<label for="title">Title</label>
<input type="text" id="title" name="title" required>
<label for="file">File</label>
<input type="file" id="file" name="file" required>
<button type="submit">Upload</button>
</form>
</div>
{{template "footer" .}}{{end}}`

const albumsTemplate = `{{define "albums"}}{{template "header" .}}
<h1>Memory albums</h1>
<form method="get" action="/albums">
<input type="text" name="q" value="{{.Query}}" placeholder="Search albums">
<label for="sort">Sort by</label>
<select id="sort" name="sort" onchange="this.form.submit()">
<option{{if eq .Sort "Date created"}} selected{{end}}>Date created</option>
<option{{if eq .Sort "Name"}} selected{{end}}>Name</option>
</select>
</form>
<div class="grid">
{{range .Albums}}
<a class="card" href="/albums/{{.ID}}">
{{if .URL}}<img class="thumb" src="{{.URL}}" alt="">{{end}}
<h2>{{.Title}}</h2>
<small>{{shortDate .CreatedAt}}</small>
</a>
{{else}}
<p>No albums yet.</p>
{{end}}
</div>
<div class="card">
<h2>New album</h2>
<form method="post" action="/albums" enctype="multipart/form-data">
<label for="title">Title</label>
<input type="text" id="title" name="title" required>
<label for="cover">Cover</label>
<input type="file" id="cover" name="cover" accept="image/*" required>
<button type="submit">Create</button>
</form>
</div>
{{template "footer" .}}{{end}}`

const albumTemplate = `{{define "album"}}{{template "header" .}}
<h1>{{.Album.Title}}</h1>
<div class="grid">
{{range .Photos}}
<div class="card">
<img class="thumb" src="{{.URL}}" alt="">
<form method="post" action="/albums/{{$.Album.ID}}/photos/{{.ID}}/delete">
<button type="submit" class="danger">Delete</button>
</form>
</div>
{{else}}
<p>No photos yet.</p>
{{end}}
</div>
<div class="card">
<h2>Add photos</h2>
<form method="post" action="/albums/{{.Album.ID}}" enctype="multipart/form-data">
<input type="file" name="photos" accept="image/*" multiple required>
<button type="submit">Upload</button>
</form>
</div>
{{template "footer" .}}{{end}}`

const errorTemplate = `{{define "error"}}{{template "header" .}}
<div class="card">
<h1>{{.Title}}</h1>
<p><a href="/">Back to your vault</a></p>
</div>
{{template "footer" .}}{{end}}`
